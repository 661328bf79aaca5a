// Package containerfile splits a Containerfile/Dockerfile into build stages
// and extracts the exact source text owned by each stage.
package containerfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Stage represents one stage in a multi-stage build.
type Stage struct {
	// Index is the 0-based position of the stage in file order.
	Index int
	// Name is the alias given via the AS clause, or empty if unnamed.
	Name string
	// BaseImage is the image reference following FROM, up to the AS clause.
	// It may contain multiple tokens (e.g. a --platform flag).
	BaseImage string
	// StartLine is the 1-based physical line where the FROM instruction's
	// logical line begins. For a continued line this is the first physical
	// line, not the one the continuation closes on.
	StartLine int
}

// openContainerfile opens a Containerfile path for reading.
// If path is "-", returns os.Stdin and a no-op closer.
func openContainerfile(path string) (io.Reader, func() error, error) {
	if path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// ParseStagesFile parses the Containerfile at path into build stages.
func ParseStagesFile(path string) ([]Stage, error) {
	r, closer, err := openContainerfile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closer() }()

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseStages(string(content))
}

// ParseStages scans content line by line and returns the build stages in
// file order. Physical lines ending in a backslash are joined into one
// logical line (separated by single spaces) before comment stripping and
// tokenization. A FROM instruction without an image reference is a
// structural error.
func ParseStages(content string) ([]Stage, error) {
	var (
		stages    []Stage
		buf       strings.Builder
		startLine int
		continued bool
	)

	lineNo := 0
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if !continued {
			startLine = lineNo
		}

		if rest, ok := strings.CutSuffix(line, `\`); ok {
			buf.WriteString(strings.TrimSpace(rest))
			buf.WriteString(" ")
			continued = true
			continue
		}

		buf.WriteString(line)
		stage, ok, err := parseLogicalLine(buf.String(), startLine, len(stages))
		if err != nil {
			return nil, err
		}
		if ok {
			stages = append(stages, stage)
		}
		buf.Reset()
		continued = false
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// A trailing continuation at EOF never closes its logical line and
	// contributes no stage.
	return stages, nil
}

// parseLogicalLine strips comments from one completed logical line,
// tokenizes it, and returns a Stage if it is a FROM instruction.
func parseLogicalLine(logical string, startLine, index int) (Stage, bool, error) {
	fields := strings.Fields(stripComments(logical))
	if len(fields) == 0 || !strings.EqualFold(fields[0], "from") {
		return Stage{}, false, nil
	}
	if len(fields) < 2 {
		return Stage{}, false, fmt.Errorf("line %d: FROM instruction has no image reference", startLine)
	}

	image := fields[1]
	name := ""
	for i := 2; i < len(fields); i++ {
		if strings.EqualFold(fields[i], "as") {
			if i+1 >= len(fields) {
				return Stage{}, false, fmt.Errorf("line %d: AS clause has no stage name", startLine)
			}
			name = fields[i+1]
			// Everything between FROM and AS is the image reference.
			image = strings.Join(fields[1:i], " ")
			break
		}
	}

	return Stage{
		Index:     index,
		Name:      name,
		BaseImage: image,
		StartLine: startLine,
	}, true, nil
}

// stripComments truncates a logical line at the first comment marker.
// A '#' starts a comment unless the preceding character is ':', so that
// references like registry/img:#tag survive. A '//' also starts a comment.
func stripComments(line string) string {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '#':
			if i == 0 || line[i-1] != ':' {
				return line[:i]
			}
		case '/':
			if i+1 < len(line) && line[i+1] == '/' {
				return line[:i]
			}
		}
	}
	return line
}

// StageSpan returns the exact original text owned by stage: the lines from
// its StartLine through the line before the next stage's StartLine, or
// through end of file for the last stage. Comments, whitespace, and
// continuation backslashes are preserved verbatim.
func StageSpan(stage Stage, all []Stage, content string) (string, error) {
	for i := 1; i < len(all); i++ {
		if all[i].StartLine <= all[i-1].StartLine {
			return "", fmt.Errorf("stages %d and %d have overlapping start lines (%d, %d)",
				all[i-1].Index, all[i].Index, all[i-1].StartLine, all[i].StartLine)
		}
	}

	endLine := 0 // 0 means end of file
	for _, other := range all {
		if other.Index == stage.Index+1 {
			endLine = other.StartLine - 1
			break
		}
	}

	lines := splitLines(content)
	if stage.StartLine < 1 || stage.StartLine > len(lines) {
		return "", fmt.Errorf("stage %d start line %d is outside the file (%d lines)",
			stage.Index, stage.StartLine, len(lines))
	}

	if endLine == 0 || endLine > len(lines) {
		endLine = len(lines)
	}
	return strings.Join(lines[stage.StartLine-1:endLine], ""), nil
}

// splitLines splits content into lines, each keeping its trailing newline.
func splitLines(content string) []string {
	lines := strings.SplitAfter(content, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

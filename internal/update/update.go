// Package update drives a full pin-update pass over one Containerfile:
// stage enumeration, version resolution per stage, span patching, diff
// confirmation, and the final write.
package update

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/syaghoubi00/pinup/internal/containerfile"
	"github.com/syaghoubi00/pinup/internal/patch"
	"github.com/syaghoubi00/pinup/internal/pkgmgr"
)

// QueryRunner resolves the latest package versions for a stage by running a
// command inside the stage's base image. Output is newline-separated
// "name=version" lines.
type QueryRunner interface {
	RunQuery(ctx context.Context, image, command string) (string, error)
}

// Updater applies pin updates to a Containerfile. All collaborators are
// injected; Updater itself never prompts and holds no global state.
type Updater struct {
	Log    *logrus.Logger
	Runner QueryRunner

	// Confirm is asked once per changed stage with the stage's unified
	// diff. A nil Confirm accepts every change (non-interactive mode).
	Confirm func(diff string) bool
}

// Result summarizes one update pass.
type Result struct {
	// Stages is the number of build stages found.
	Stages int
	// StagesPatched is the number of stages whose span was rewritten.
	StagesPatched int
	// Written reports whether the file on disk was rewritten.
	Written bool
}

// Run updates the pinned package versions in the Containerfile at path.
// Stage spans are computed against the original text and spliced back over
// their line ranges; substitutions never change line counts, so spans stay
// valid across stages. Nothing is written to disk unless at least one stage
// diff was accepted.
func (u *Updater) Run(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	content := string(data)

	stages, err := containerfile.ParseStages(content)
	if err != nil {
		return Result{}, err
	}
	u.Log.Infof("found %d build stages in %s", len(stages), path)

	res := Result{Stages: len(stages)}
	working := content

	for _, stage := range stages {
		u.Log.Infof("stage %d (%s) uses base image %s",
			stage.Index, stageLabel(stage), stage.BaseImage)

		patched, span, err := u.patchStage(ctx, stage, stages, content)
		if err != nil {
			if errors.Is(err, pkgmgr.ErrUnknownBaseImage) {
				u.Log.WithError(err).Warnf("skipping stage %d", stage.Index)
				continue
			}
			return res, fmt.Errorf("stage %d: %w", stage.Index, err)
		}
		if patched == span {
			continue
		}

		diff, err := patch.UnifiedDiff(span, patched, path)
		if err != nil {
			return res, fmt.Errorf("stage %d: %w", stage.Index, err)
		}
		if u.Confirm != nil && !u.Confirm(diff) {
			u.Log.Infof("skipping update for stage %d", stage.Index)
			continue
		}

		working, err = spliceSpan(working, stage, stages, patched)
		if err != nil {
			return res, fmt.Errorf("stage %d: %w", stage.Index, err)
		}
		res.StagesPatched++
	}

	if res.StagesPatched == 0 {
		u.Log.Infof("no updates for %s", path)
		return res, nil
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, []byte(working), mode); err != nil {
		return res, err
	}
	res.Written = true
	u.Log.Infof("updated %s", path)
	return res, nil
}

// patchStage resolves new versions for one stage and returns the patched
// span along with the original one.
func (u *Updater) patchStage(ctx context.Context, stage containerfile.Stage, stages []containerfile.Stage, content string) (patched, span string, err error) {
	span, err = containerfile.StageSpan(stage, stages, content)
	if err != nil {
		return "", "", err
	}

	manager, err := pkgmgr.Detect(stage.BaseImage)
	if err != nil {
		return "", "", err
	}
	u.Log.Infof("stage %d uses package manager %s", stage.Index, manager.Name)

	packages := patch.Candidates(span, manager.PinPattern())
	if len(packages) == 0 {
		u.Log.Infof("no pinned packages found in stage %d", stage.Index)
		return span, span, nil
	}
	u.Log.Infof("pinned packages in stage %d: %s", stage.Index, strings.Join(packages, " "))

	out, err := u.Runner.RunQuery(ctx, stage.BaseImage, manager.QueryCommand(packages))
	if err != nil {
		return "", "", err
	}

	newVersions := splitResultLines(out)
	u.Log.Debugf("new package versions in stage %d: %s",
		stage.Index, strings.Join(newVersions, " "))

	return patch.Apply(span, manager.PinPattern(), manager.Separator, newVersions), span, nil
}

// splitResultLines splits query output into non-empty trimmed lines.
func splitResultLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// spliceSpan replaces stage's line range inside working with the patched
// span. Line numbers refer to the original file; the patched span must
// cover the same number of lines as the original one.
func spliceSpan(working string, stage containerfile.Stage, all []containerfile.Stage, patched string) (string, error) {
	span, err := containerfile.StageSpan(stage, all, working)
	if err != nil {
		return "", err
	}

	endLine := 0
	for _, other := range all {
		if other.Index == stage.Index+1 {
			endLine = other.StartLine - 1
			break
		}
	}

	lines := strings.SplitAfter(working, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if endLine == 0 || endLine > len(lines) {
		endLine = len(lines)
	}
	if strings.Count(patched, "\n") != strings.Count(span, "\n") {
		return "", fmt.Errorf("patched span for stage %d changes the line count", stage.Index)
	}

	prefix := strings.Join(lines[:stage.StartLine-1], "")
	suffix := strings.Join(lines[endLine:], "")
	return prefix + patched + suffix, nil
}

// stageLabel names a stage for logs.
func stageLabel(stage containerfile.Stage) string {
	if stage.Name == "" {
		return "unnamed"
	}
	return stage.Name
}

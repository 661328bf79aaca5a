package containerfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseStages(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Stage
	}{
		{
			name:    "single stage",
			content: "FROM alpine:3.18\nRUN echo hello\n",
			want: []Stage{
				{Index: 0, BaseImage: "alpine:3.18", StartLine: 1},
			},
		},
		{
			name:    "named single stage",
			content: "FROM registry/base:1.0 AS builder\nRUN echo hello\n",
			want: []Stage{
				{Index: 0, Name: "builder", BaseImage: "registry/base:1.0", StartLine: 1},
			},
		},
		{
			name: "multi-stage build",
			content: "FROM golang:1.21 AS builder\nRUN go build\n\n" +
				"FROM alpine:3.18\nCOPY --from=builder /app /app\n",
			want: []Stage{
				{Index: 0, Name: "builder", BaseImage: "golang:1.21", StartLine: 1},
				{Index: 1, BaseImage: "alpine:3.18", StartLine: 4},
			},
		},
		{
			name:    "lowercase from and as",
			content: "from fedora:39 as build\n",
			want: []Stage{
				{Index: 0, Name: "build", BaseImage: "fedora:39", StartLine: 1},
			},
		},
		{
			name:    "platform flag joins into image reference",
			content: "FROM --platform=linux/amd64 fedora:39 AS build\n",
			want: []Stage{
				{Index: 0, Name: "build", BaseImage: "--platform=linux/amd64 fedora:39", StartLine: 1},
			},
		},
		{
			name:    "continued FROM keeps first physical line",
			content: "RUN true\nFROM \\\n    fedora:39 \\\n    AS builder\nRUN dnf install -y bash=5.1\n",
			want: []Stage{
				{Index: 0, Name: "builder", BaseImage: "fedora:39", StartLine: 2},
			},
		},
		{
			name:    "comment after instruction is stripped",
			content: "FROM fedora:39 # base image\n",
			want: []Stage{
				{Index: 0, BaseImage: "fedora:39", StartLine: 1},
			},
		},
		{
			name:    "hash preceded by colon is part of the reference",
			content: "FROM registry/base:#latest AS builder\n",
			want: []Stage{
				{Index: 0, Name: "builder", BaseImage: "registry/base:#latest", StartLine: 1},
			},
		},
		{
			name:    "double slash truncates the line",
			content: "FROM fedora:39 // trailing note\n",
			want: []Stage{
				{Index: 0, BaseImage: "fedora:39", StartLine: 1},
			},
		},
		{
			name:    "comment hiding an AS clause is ignored",
			content: "FROM fedora:39 # AS builder\n",
			want: []Stage{
				{Index: 0, BaseImage: "fedora:39", StartLine: 1},
			},
		},
		{
			name:    "full-line comments and blanks contribute nothing",
			content: "# header\n\nFROM fedora:39\n\n# footer\n",
			want: []Stage{
				{Index: 0, BaseImage: "fedora:39", StartLine: 3},
			},
		},
		{
			name:    "no stages",
			content: "# only comments\nRUN echo hello\n",
			want:    nil,
		},
		{
			name:    "trailing continuation at EOF is dropped",
			content: "FROM fedora:39\nRUN echo hello \\\n",
			want: []Stage{
				{Index: 0, BaseImage: "fedora:39", StartLine: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStages(tt.content)
			if err != nil {
				t.Fatalf("ParseStages() error = %v", err)
			}

			if len(got) != len(tt.want) {
				t.Fatalf("len(stages) = %d, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("stage %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseStages_StructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "FROM without image",
			content: "FROM\nRUN echo hello\n",
			wantErr: "no image reference",
		},
		{
			name:    "FROM with only a comment",
			content: "FROM # fedora:39\n",
			wantErr: "no image reference",
		},
		{
			name:    "AS without stage name",
			content: "FROM fedora:39 AS\n",
			wantErr: "no stage name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStages(tt.content)
			if err == nil {
				t.Fatal("ParseStages() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseStages_IndicesAndOrder(t *testing.T) {
	content := strings.Repeat("FROM fedora:39\nRUN true\n", 5)
	stages, err := ParseStages(content)
	if err != nil {
		t.Fatalf("ParseStages() error = %v", err)
	}
	if len(stages) != 5 {
		t.Fatalf("len(stages) = %d, want 5", len(stages))
	}
	for i, stage := range stages {
		if stage.Index != i {
			t.Errorf("stage %d has index %d", i, stage.Index)
		}
		if i > 0 && stage.StartLine <= stages[i-1].StartLine {
			t.Errorf("stage %d start line %d not after stage %d start line %d",
				i, stage.StartLine, i-1, stages[i-1].StartLine)
		}
	}
}

func TestStageSpan(t *testing.T) {
	content := "FROM golang:1.21 AS builder\n" + // 1
		"# build step\n" + // 2
		"RUN go build \\\n" + // 3
		"    -o /app ./cmd\n" + // 4
		"\n" + // 5
		"FROM fedora:39\n" + // 6
		"RUN dnf install -y bash=5.1\n" // 7

	stages, err := ParseStages(content)
	if err != nil {
		t.Fatalf("ParseStages() error = %v", err)
	}
	if len(stages) != 2 {
		t.Fatalf("len(stages) = %d, want 2", len(stages))
	}

	first, err := StageSpan(stages[0], stages, content)
	if err != nil {
		t.Fatalf("StageSpan(stage 0) error = %v", err)
	}
	want := "FROM golang:1.21 AS builder\n# build step\nRUN go build \\\n    -o /app ./cmd\n\n"
	if first != want {
		t.Errorf("stage 0 span = %q, want %q", first, want)
	}

	last, err := StageSpan(stages[1], stages, content)
	if err != nil {
		t.Fatalf("StageSpan(stage 1) error = %v", err)
	}
	want = "FROM fedora:39\nRUN dnf install -y bash=5.1\n"
	if last != want {
		t.Errorf("stage 1 span = %q, want %q", last, want)
	}

	if strings.Contains(first, "fedora") {
		t.Error("stage 0 span leaks into stage 1")
	}
}

func TestStageSpan_LastLineWithoutNewline(t *testing.T) {
	content := "FROM fedora:39\nRUN dnf install -y bash=5.1"
	stages, err := ParseStages(content)
	if err != nil {
		t.Fatalf("ParseStages() error = %v", err)
	}

	span, err := StageSpan(stages[0], stages, content)
	if err != nil {
		t.Fatalf("StageSpan() error = %v", err)
	}
	if span != content {
		t.Errorf("span = %q, want the whole file", span)
	}
}

func TestStageSpan_DuplicateStartLines(t *testing.T) {
	malformed := []Stage{
		{Index: 0, BaseImage: "fedora:39", StartLine: 1},
		{Index: 1, BaseImage: "alpine:3.18", StartLine: 1},
	}

	_, err := StageSpan(malformed[0], malformed, "FROM fedora:39\n")
	if err == nil {
		t.Fatal("StageSpan() expected error for duplicate start lines, got nil")
	}
}

func TestParseStagesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "Containerfile")
	content := "FROM fedora:39 AS build\nRUN dnf install -y bash=5.1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	stages, err := ParseStagesFile(path)
	if err != nil {
		t.Fatalf("ParseStagesFile() error = %v", err)
	}
	if len(stages) != 1 || stages[0].Name != "build" {
		t.Errorf("stages = %+v, want one stage named build", stages)
	}

	if _, err := ParseStagesFile(filepath.Join(tmpDir, "missing")); err == nil {
		t.Error("ParseStagesFile() expected error for missing file")
	}
}

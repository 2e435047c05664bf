package topic

import "testing"

func TestBuild(t *testing.T) {
	b := NewBuilder("eld/v1")

	if got, want := b.Build("frames", "dev-42"), "eld/v1/frames/dev-42"; got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
	if got, want := b.BuildWildcard("frames"), "eld/v1/frames/+"; got != want {
		t.Errorf("BuildWildcard() = %q, want %q", got, want)
	}
}

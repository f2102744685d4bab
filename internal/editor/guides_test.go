package editor

import (
	"slices"
	"testing"
)

func TestGuides_OnePerIndentColumn(t *testing.T) {
	r := GuideRenderer{IndentSize: 2}
	got := r.Collect("a\n  b\n    c", []int{0, 1, 2})
	want := []Guide{
		{Line: 1, Column: 0, Level: 0},
		{Line: 2, Column: 0, Level: 0},
		{Line: 2, Column: 2, Level: 1},
	}
	if !slices.Equal(got, want) {
		t.Errorf("guides = %+v, want %+v", got, want)
	}
}

func TestGuides_UsesTrackedLevelsOverSpaces(t *testing.T) {
	r := GuideRenderer{IndentSize: 2}
	got := r.Collect("x\ny", []int{0, 3})
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, g := range got {
		if g.Line != 1 || g.Level != i || g.Column != i*2 {
			t.Errorf("guide %d = %+v", i, g)
		}
	}
}

func TestGuides_FallbackWhenLevelsMissing(t *testing.T) {
	r := GuideRenderer{IndentSize: 4}
	got := r.Collect("x\n        y\n     z", nil)
	want := []Guide{
		{Line: 1, Column: 0, Level: 0},
		{Line: 1, Column: 4, Level: 1},
		{Line: 2, Column: 0, Level: 0},
	}
	if !slices.Equal(got, want) {
		t.Errorf("guides = %+v, want %+v", got, want)
	}
}

func TestGuides_FallbackWhenLevelsShort(t *testing.T) {
	r := GuideRenderer{IndentSize: 2}
	got := r.Collect("  a\n  b", []int{3})
	if len(got) != 2 || got[0].Line != 0 || got[1].Line != 1 {
		t.Errorf("guides = %+v, want one guide per line from leading spaces", got)
	}
}

func TestGuides_EmptyContent(t *testing.T) {
	got := GuideRenderer{IndentSize: 2}.Collect("", nil)
	if got == nil || len(got) != 0 {
		t.Errorf("guides = %#v, want empty non-nil slice", got)
	}
}

func TestGuides_StopsEarly(t *testing.T) {
	r := GuideRenderer{IndentSize: 2}
	n := 0
	for range r.Guides("        a\n        b", nil) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterations = %d, want 2", n)
	}
}

func TestStatusOf(t *testing.T) {
	st := StatusOf("hello world\n  日本 x", 16, true, false)
	if st.Lines != 2 || st.Words != 4 {
		t.Errorf("lines/words = %d/%d, want 2/4", st.Lines, st.Words)
	}
	if st.CaretLine != 2 {
		t.Errorf("caret line = %d, want 2", st.CaretLine)
	}
	// "  日本" is 2 + 2*2 cells wide.
	if st.CaretColumn != 7 {
		t.Errorf("caret column = %d, want 7", st.CaretColumn)
	}
	if !st.Dirty || st.Preview {
		t.Errorf("flags = %+v", st)
	}
}

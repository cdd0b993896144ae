package stats

import "testing"

func TestBreakdown_PercentagesAndOrder(t *testing.T) {
	got := Breakdown(map[string]int64{
		"Go":         6000,
		"TypeScript": 3000,
		"Nim":        1000,
	})
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	want := []Language{
		{Name: "Go", Bytes: 6000, Percentage: 60, Color: "#00ADD8"},
		{Name: "TypeScript", Bytes: 3000, Percentage: 30, Color: "#3178c6"},
		{Name: "Nim", Bytes: 1000, Percentage: 10, Color: "#8b949e"},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBreakdown_RoundsToOneDecimal(t *testing.T) {
	got := Breakdown(map[string]int64{"A": 1, "B": 2})
	// 1/3 = 33.33 -> 33.3, 2/3 = 66.67 -> 66.7
	if got[0].Percentage != 66.7 || got[1].Percentage != 33.3 {
		t.Fatalf("percentages = %v, %v", got[0].Percentage, got[1].Percentage)
	}
}

func TestBreakdown_TopEight(t *testing.T) {
	in := map[string]int64{}
	for i, name := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"} {
		in[name] = int64(100 - i)
	}
	got := Breakdown(in)
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}
	if got[0].Name != "A" || got[7].Name != "H" {
		t.Fatalf("first/last = %s/%s", got[0].Name, got[7].Name)
	}
}

func TestBreakdown_TiesSortedByName(t *testing.T) {
	got := Breakdown(map[string]int64{"Zig": 10, "C": 10, "Go": 10})
	if got[0].Name != "C" || got[1].Name != "Go" || got[2].Name != "Zig" {
		t.Fatalf("order = %v", got)
	}
}

func TestBreakdown_Empty(t *testing.T) {
	if got := Breakdown(nil); len(got) != 0 {
		t.Fatalf("got %v", got)
	}
	got := Breakdown(map[string]int64{"Go": 0})
	if got[0].Percentage != 0 {
		t.Fatalf("zero total percentage = %v", got[0].Percentage)
	}
}

func TestLanguageColor(t *testing.T) {
	if c := LanguageColor("Rust"); c != "#dea584" {
		t.Fatalf("Rust = %s", c)
	}
	if c := LanguageColor("Brainfuck"); c != "#8b949e" {
		t.Fatalf("unknown = %s", c)
	}
}

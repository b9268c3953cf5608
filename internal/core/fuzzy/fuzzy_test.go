package fuzzy

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 0.01 }

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abc", "abc", 100},
		{"kitten", "sitting", 61.538},
		{"", "", 100},
		{"abc", "", 0},
		{"Sao Paulo|SP", "São Paulo|SP", 91.666},
	}
	for _, tc := range tests {
		if got := Ratio(tc.a, tc.b); !near(got, tc.want) {
			t.Fatalf("Ratio(%q,%q) = %.3f, want %.3f", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestPartialRatio(t *testing.T) {
	if got := PartialRatio("Paulo", "São Paulo"); got != 100 {
		t.Fatalf("substring should score 100, got %.2f", got)
	}
	if got := PartialRatio("São Paulo", "Paulo"); got != 100 {
		t.Fatalf("argument order should not matter, got %.2f", got)
	}
	if got := PartialRatio("", "x"); got != 0 {
		t.Fatalf("empty input should score 0, got %.2f", got)
	}
}

func TestTokenRatios(t *testing.T) {
	if got := TokenSortRatio("Paulo São", "São Paulo"); got != 100 {
		t.Fatalf("TokenSortRatio reorder = %.2f, want 100", got)
	}
	if got := TokenSetRatio("Rio Grande Do Sul", "Rio Grande"); got != 100 {
		t.Fatalf("TokenSetRatio subset = %.2f, want 100", got)
	}
	if got := TokenSetRatio("", "Rio"); got != 0 {
		t.Fatalf("TokenSetRatio empty = %.2f, want 0", got)
	}
	if got := PartialTokenRatio("Minas Gerais", "Gerais"); got != 100 {
		t.Fatalf("PartialTokenRatio shared token = %.2f, want 100", got)
	}
}

func TestWRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "Brasil", "Brasil", 100},
		{"empty side", "", "Brasil", 0},
		{"accent variant", "Sao Paulo|SP", "São Paulo|SP", 92},
		{"abbreviated", "S Paulo|SP", "São Paulo|SP", 91},
		{"reordered tokens", "Paulo São", "São Paulo", 95},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.a, tc.b); got != tc.want {
				t.Fatalf("Score(%q,%q) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestWRatio_Bounded(t *testing.T) {
	pairs := [][2]string{
		{"Estado Completamente Diferente", "Brazil"},
		{"Minas Gerais|", "Minas Gerais|MG"},
		{"X", "A very long country name indeed"},
	}
	for _, p := range pairs {
		s := WRatio(p[0], p[1])
		if s < 0 || s > 100 {
			t.Fatalf("WRatio(%q,%q) = %.2f out of range", p[0], p[1], s)
		}
		if s != WRatio(p[0], p[1]) {
			t.Fatalf("WRatio not deterministic")
		}
	}
}

func TestExtractOne(t *testing.T) {
	countries := []string{"Argentina", "Brazil", "Chile", "Portugal"}

	m, ok := ExtractOne("Brasil", countries, nil, 80)
	if !ok || m.Choice != "Brazil" {
		t.Fatalf("ExtractOne Brasil = %+v ok=%v", m, ok)
	}

	if _, ok := ExtractOne("Estado Completamente Diferente", countries, nil, 95); ok {
		t.Fatalf("nothing should clear a 95 cutoff")
	}
}

func TestExtractOne_TieTakesSmallestKey(t *testing.T) {
	flat := func(string, string) int { return 90 }
	m, ok := ExtractOne("q", []string{"zeta", "alpha", "mid"}, flat, 90)
	if !ok || m.Choice != "alpha" || m.Score != 90 {
		t.Fatalf("tie-break = %+v ok=%v, want alpha", m, ok)
	}
	if _, ok := ExtractOne("q", []string{"a"}, flat, 91); ok {
		t.Fatalf("cutoff above every score should find nothing")
	}
}

package report

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

func TestSampleProfile(t *testing.T) {
	points := SampleProfile(rand.New(rand.NewPCG(1, 2)))

	if len(points) != ProfileDays {
		t.Fatalf("len = %d, want %d", len(points), ProfileDays)
	}
	for i, p := range points {
		want := time.Date(2023, time.March, 1+i, 0, 0, 0, 0, time.UTC)
		if !p.Date.Equal(want) {
			t.Errorf("point %d date = %v, want %v", i, p.Date, want)
		}
		if p.Value < MinDemand || p.Value >= MaxDemand {
			t.Errorf("point %d value = %d, out of [%d, %d)", i, p.Value, MinDemand, MaxDemand)
		}
	}
	if last := points[len(points)-1].Date; last.Month() != time.March || last.Day() != 31 {
		t.Errorf("last date = %v, want 2023-03-31", last)
	}
}

func TestSampleProfile_Deterministic(t *testing.T) {
	a := SampleProfile(rand.New(rand.NewPCG(7, 7)))
	b := SampleProfile(rand.New(rand.NewPCG(7, 7)))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("point %d differs with the same seed", i)
		}
	}

	if got := len(SampleProfile(nil)); got != ProfileDays {
		t.Errorf("global source len = %d", got)
	}
}

func TestProfileChart(t *testing.T) {
	points := SampleProfile(rand.New(rand.NewPCG(1, 2)))
	line := ProfileChart(points)

	if len(line.MultiSeries) != 1 {
		t.Fatalf("series = %d, want 1", len(line.MultiSeries))
	}
	if line.MultiSeries[0].Name != "Demanda" {
		t.Errorf("series name = %q", line.MultiSeries[0].Name)
	}

	var buf bytes.Buffer
	if err := RenderProfile(&buf, points); err != nil {
		t.Fatalf("RenderProfile() error = %v", err)
	}
	html := buf.String()
	for _, want := range []string{"Perfil de Carga", "Demanda", "Data", "Consumo (kW)", "2023-03-01", "2023-03-31"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered chart missing %q", want)
		}
	}
}

func TestSuggestion(t *testing.T) {
	tests := []struct {
		name    string
		in      SuggestionInput
		want    string
		wantErr bool
	}{
		{
			name: "default period",
			in:   SuggestionInput{Total: 350, Period: DefaultPeriod},
			want: "Sugestões para Mar/2024 com 350 kWh consumidos.",
		},
		{
			name: "minimum total",
			in:   SuggestionInput{Total: 1, Period: "Jan/2025"},
			want: "Sugestões para Jan/2025 com 1 kWh consumidos.",
		},
		{name: "zero total", in: SuggestionInput{Total: 0, Period: "Mar/2024"}, wantErr: true},
		{name: "negative total", in: SuggestionInput{Total: -5, Period: "Mar/2024"}, wantErr: true},
		{name: "empty period", in: SuggestionInput{Total: 10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Suggestion(tt.in)
			if tt.wantErr {
				var verrs validator.ValidationErrors
				if !errors.As(err, &verrs) {
					t.Fatalf("Suggestion() error = %v, want validation errors", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Suggestion() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Suggestion() = %q, want %q", got, tt.want)
			}
		})
	}
}

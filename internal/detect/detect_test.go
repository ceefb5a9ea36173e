package detect

import (
	"strings"
	"testing"
)

func TestMetadataPages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		metadata string
		want     int
		ok       bool
	}{
		{
			name:     "numeric value",
			metadata: `{"@type":"Book","name":"Het Grote Verhaal","numberOfPages":128}`,
			want:     128,
			ok:       true,
		},
		{
			name:     "quoted value",
			metadata: `{"numberOfPages": "64"}`,
			want:     64,
			ok:       true,
		},
		{
			name:     "absent",
			metadata: `{"@type":"Book","name":"x"}`,
		},
		{
			name: "empty metadata",
		},
	}

	for _, tt := range tests {
		got, ok := MetadataPages(Document{Metadata: tt.metadata})
		if ok != tt.ok || got != tt.want {
			t.Errorf("%s: MetadataPages = (%d, %t), want (%d, %t)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLabelPages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want int
		ok   bool
	}{
		{"dutch label", "Dit boek heeft 96 pagina's in totaal.", 96, true},
		{"english label", "This book has 120 pages.", 120, true},
		{"singular", "1 page", 1, true},
		{"no label", "een boek zonder aantal", 0, false},
	}

	for _, tt := range tests {
		got, ok := LabelPages(Document{BodyText: tt.body})
		if ok != tt.ok || got != tt.want {
			t.Errorf("%s: LabelPages = (%d, %t), want (%d, %t)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIndicatorPages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want int
		ok   bool
	}{
		{"indicator on its own line", "Mijn Boek\n3 / 48\nvolgende", 48, true},
		{"indicator with padding", "kop\n  12 / 200  \nvoet", 200, true},
		{"inline ratio is not an indicator", "score was 3 / 48 today", 0, false},
		{"total below current rejected", "kop\n10 / 4\nvoet", 0, false},
	}

	for _, tt := range tests {
		got, ok := IndicatorPages(Document{BodyText: tt.body})
		if ok != tt.ok || got != tt.want {
			t.Errorf("%s: IndicatorPages = (%d, %t), want (%d, %t)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestScanPages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want int
		ok   bool
	}{
		{"short inline ratio", "blader snel naar 1 / 32 om te beginnen", 32, true},
		{"long match is skipped", "factuur 123456 / 7890123 euro", 0, false},
		{"skips a long date ratio, accepts the next short one", "datum 2023 / 2024 en dan 4 / 96", 96, true},
		{"inverted ratio rejected", "van 48 / 3 geen paginatelling", 0, false},
		{"nothing", "geen cijfers hier", 0, false},
	}

	for _, tt := range tests {
		got, ok := ScanPages(Document{BodyText: tt.body})
		if ok != tt.ok || got != tt.want {
			t.Errorf("%s: ScanPages = (%d, %t), want (%d, %t)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPageCountOrder(t *testing.T) {
	t.Parallel()

	// Metadata must win even when later strategies would also match.
	doc := Document{
		Metadata: `{"numberOfPages": 128}`,
		BodyText: "Dit boek heeft 96 pagina's.\n1 / 48\n",
	}
	if got, ok := PageCount(doc); !ok || got != 128 {
		t.Errorf("PageCount = (%d, %t), want (128, true)", got, ok)
	}

	// Without metadata the label wins over the indicator.
	doc.Metadata = ""
	if got, ok := PageCount(doc); !ok || got != 96 {
		t.Errorf("PageCount = (%d, %t), want (96, true)", got, ok)
	}

	// Indicator only.
	doc.BodyText = "kop\n1 / 48\nvoet"
	if got, ok := PageCount(doc); !ok || got != 48 {
		t.Errorf("PageCount = (%d, %t), want (48, true)", got, ok)
	}

	// Nothing at all.
	if got, ok := PageCount(Document{BodyText: "niets"}); ok {
		t.Errorf("PageCount = (%d, %t), want no result", got, ok)
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  Document
		want string
	}{
		{
			name: "metadata name wins",
			doc: Document{
				Title:    "Viewer - pagina 1",
				Metadata: `{"@type":"Book","name":"Het Grote Verhaal"}`,
			},
			want: "Het Grote Verhaal",
		},
		{
			name: "document title as fallback",
			doc:  Document{Title: "Mijn Boek"},
			want: "Mijn Boek",
		},
		{
			name: "identifier as last resort",
			doc:  Document{},
			want: "acme-boek",
		},
	}

	for _, tt := range tests {
		if got := Title(tt.doc, "acme-boek"); got != tt.want {
			t.Errorf("%s: Title = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPromptPageCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"valid", "48\n", 48, false},
		{"surrounding whitespace", "  12  \n", 12, false},
		{"zero", "0\n", 0, true},
		{"negative", "-3\n", 0, true},
		{"not a number", "achtenveertig\n", 0, true},
		{"empty input", "", 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out strings.Builder
			got, err := PromptPageCount(strings.NewReader(tt.input), &out)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("PromptPageCount(%q) = %d, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("PromptPageCount(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("PromptPageCount(%q) = %d, want %d", tt.input, got, tt.want)
			}
			if out.Len() == 0 {
				t.Error("prompt text was not written")
			}
		})
	}
}

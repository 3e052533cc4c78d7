package imagecodec

import "testing"

func TestParseFormat(t *testing.T) {
	tests := []struct {
		token   string
		want    OutputFormat
		wantErr bool
	}{
		{token: "png", want: OutputFormat{Kind: FormatPNG}},
		{token: "PNG", want: OutputFormat{Kind: FormatPNG}},
		{token: "bmp", want: OutputFormat{Kind: FormatBMP}},
		{token: "jpeg", want: OutputFormat{Kind: FormatJPEG, JPEGQuality: DefaultJPEGQuality}},
		{token: "jpeg80", want: OutputFormat{Kind: FormatJPEG, JPEGQuality: 80, QualityExplicit: true}},
		{token: "webp", want: OutputFormat{Kind: FormatWebPLossless}},
		{token: "webp72.5", want: OutputFormat{Kind: FormatWebPLossy, WebPQuality: 72.5, QualityExplicit: true}},
		{token: "image/png", want: OutputFormat{Kind: FormatPNG}},
		{token: "image/webp", want: OutputFormat{Kind: FormatWebPLossless}},
		{token: "jpeg101", wantErr: true},
		{token: "jpegabc", wantErr: true},
		{token: "webp-5", wantErr: true},
		{token: "gif", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseFormat(tt.token)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseFormat(%q) expected error, got %+v", tt.token, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFormat(%q) unexpected error: %v", tt.token, err)
			}
			if got != tt.want {
				t.Fatalf("ParseFormat(%q) = %+v, want %+v", tt.token, got, tt.want)
			}
		})
	}
}

func TestOutputFormatDisplay(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{OutputFormat{Kind: FormatPNG}, "image/png"},
		{OutputFormat{Kind: FormatBMP}, "image/bmp"},
		{OutputFormat{Kind: FormatJPEG, JPEGQuality: 80}, "image/jpeg - quality: 80"},
		{OutputFormat{Kind: FormatWebPLossless}, "image/webp - loseless"},
		{OutputFormat{Kind: FormatWebPLossy, WebPQuality: 72.5}, "image/webp - quality: 72.5"},
	}
	for _, tt := range tests {
		if got := tt.format.Display(); got != tt.want {
			t.Fatalf("Display() = %q, want %q", got, tt.want)
		}
	}
}

func TestOutputDimensionsDisplay(t *testing.T) {
	tests := []struct {
		dims OutputDimensions
		want string
	}{
		{OutputDimensions{Kind: DimensionsOriginal}, "original"},
		{OutputDimensions{Kind: DimensionsExact, Width: 100, Height: 50}, "100x50 exact"},
		{OutputDimensions{Kind: DimensionsKeepRatio, Width: 100, Height: 50}, "100x50 keep ratio"},
	}
	for _, tt := range tests {
		if got := tt.dims.Display(); got != tt.want {
			t.Fatalf("Display() = %q, want %q", got, tt.want)
		}
	}
}

package imagegen

import (
	"encoding/base64"
	"errors"
	"testing"

	"lulu_studio/asset"
)

func TestComposePrompt(t *testing.T) {
	tests := []struct {
		name     string
		prompt   string
		style    string
		negative string
		expected string
	}{
		{
			name:     "style and negative",
			prompt:   "a fox",
			style:    "Cinematic",
			negative: "blur",
			expected: "Cinematic style. a fox Exclude: blur",
		},
		{
			name:     "style None is omitted",
			prompt:   "a fox",
			style:    asset.StyleNone,
			expected: "a fox",
		},
		{
			name:     "empty style is omitted",
			prompt:   "a fox",
			expected: "a fox",
		},
		{
			name:     "blank negative is omitted",
			prompt:   "a fox",
			style:    "Anime",
			negative: "   ",
			expected: "Anime style. a fox",
		},
		{
			name:     "negative without style",
			prompt:   "  a fox  ",
			negative: "text",
			expected: "a fox Exclude: text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComposePrompt(tt.prompt, tt.style, tt.negative)
			if result != tt.expected {
				t.Errorf("ComposePrompt(%q, %q, %q) = %q, expected %q",
					tt.prompt, tt.style, tt.negative, result, tt.expected)
			}
		})
	}
}

func TestEnhanceInstruction_QuotesPrompt(t *testing.T) {
	got := EnhanceInstruction("a fox")
	want := `Original Prompt: "a fox"`
	if len(got) < len(want) || got[len(got)-len(want):] != want {
		t.Errorf("instruction should end with %q, got %q", want, got)
	}
}

func TestUpscaleInstruction(t *testing.T) {
	got := UpscaleInstruction("a fox")
	want := "Upscale this image to 4K resolution. Enhance details, sharpen focus, and improve textures " +
		"while maintaining the original composition and style. a fox"
	if got != want {
		t.Errorf("UpscaleInstruction() = %q, expected %q", got, want)
	}
}

func TestStripDataURIPrefix(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		expected string
	}{
		{"png", "data:image/png;base64,AAAA", "AAAA"},
		{"jpeg", "data:image/jpeg;base64,BBBB", "BBBB"},
		{"webp", "data:image/webp;base64,CCCC", "CCCC"},
		{"gif is left alone", "data:image/gif;base64,DDDD", "data:image/gif;base64,DDDD"},
		{"raw base64", "EEEE", "EEEE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := StripDataURIPrefix(tt.ref); result != tt.expected {
				t.Errorf("StripDataURIPrefix(%q) = %q, expected %q", tt.ref, result, tt.expected)
			}
		})
	}
}

func TestParseDataURI(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("pixels"))

	t.Run("valid", func(t *testing.T) {
		mimeType, data, err := ParseDataURI("data:image/jpeg;base64," + payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mimeType != "image/jpeg" || string(data) != "pixels" {
			t.Errorf("got (%q, %q)", mimeType, data)
		}
	})

	t.Run("missing mime defaults to png", func(t *testing.T) {
		mimeType, _, err := ParseDataURI("data:;base64," + payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mimeType != DefaultMimeType {
			t.Errorf("expected %s, got %s", DefaultMimeType, mimeType)
		}
	})

	invalid := map[string]string{
		"not a data uri": "https://example.com/a.png",
		"no payload":     "data:image/png;base64",
		"not base64":     "data:image/png," + payload,
		"bad payload":    "data:image/png;base64,!!!",
	}
	for name, ref := range invalid {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ParseDataURI(ref); !errors.Is(err, ErrInvalidImageRef) {
				t.Errorf("expected ErrInvalidImageRef, got %v", err)
			}
		})
	}
}

func TestUpscaleSource(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("pixels"))

	for _, ref := range []string{"data:image/png;base64," + payload, payload} {
		data, err := upscaleSource(ref)
		if err != nil {
			t.Fatalf("upscaleSource(%q): %v", ref, err)
		}
		if string(data) != "pixels" {
			t.Errorf("upscaleSource(%q) = %q", ref, data)
		}
	}

	if _, err := upscaleSource(""); !errors.Is(err, ErrInvalidImageRef) {
		t.Errorf("expected ErrInvalidImageRef for empty ref, got %v", err)
	}
}

func TestIsEntityNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"exact", errors.New("Requested entity was not found."), true},
		{"wrapped lower case", errors.New("rpc error: requested entity was not found"), true},
		{"other", errors.New("quota exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsEntityNotFound(tt.err); result != tt.expected {
				t.Errorf("IsEntityNotFound(%v) = %v, expected %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestIsAzureEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		expected bool
	}{
		{"empty string returns false", "", false},
		{"openai.azure.com returns true", "https://myresource.openai.azure.com", true},
		{"cognitiveservices.azure.com returns true", "https://myresource.cognitiveservices.azure.com", true},
		{"case insensitive", "https://myresource.OpenAI.Azure.COM", true},
		{"standard OpenAI returns false", "https://api.openai.com/v1", false},
		{"localhost returns false", "http://localhost:1234", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsAzureEndpoint(tt.endpoint); result != tt.expected {
				t.Errorf("IsAzureEndpoint(%q) = %v, expected %v", tt.endpoint, result, tt.expected)
			}
		})
	}
}

func TestOpenAISize(t *testing.T) {
	tests := []struct {
		ratio    asset.AspectRatio
		expected string
	}{
		{asset.AspectSquare, "1024x1024"},
		{asset.AspectWide, "1536x1024"},
		{asset.AspectLandscape, "1536x1024"},
		{asset.AspectTall, "1024x1536"},
		{asset.AspectPortrait, "1024x1536"},
	}

	for _, tt := range tests {
		t.Run(string(tt.ratio), func(t *testing.T) {
			if result := OpenAISize(tt.ratio); result != tt.expected {
				t.Errorf("OpenAISize(%s) = %s, expected %s", tt.ratio, result, tt.expected)
			}
		})
	}
}

func TestExtensionForMime(t *testing.T) {
	tests := map[string]string{
		"image/png":                 ".png",
		"image/jpeg":                ".jpg",
		"image/jpg":                 ".jpg",
		"IMAGE/WEBP":                ".webp",
		"image/gif":                 ".gif",
		"image/jpeg; charset=utf-8": ".jpg",
		"":                          ".png",
		"application/octet-stream":  ".png",
	}
	for mimeType, expected := range tests {
		if result := ExtensionForMime(mimeType); result != expected {
			t.Errorf("ExtensionForMime(%q) = %q, expected %q", mimeType, result, expected)
		}
	}
}

func TestImage_DataURI(t *testing.T) {
	img := &Image{Data: []byte("pixels")}
	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("pixels"))
	if got := img.DataURI(); got != want {
		t.Errorf("DataURI() = %q, expected %q", got, want)
	}
	if got := img.String(); got != "image/png (6 bytes)" {
		t.Errorf("String() = %q", got)
	}
}

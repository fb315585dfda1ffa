package ref

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestParseContentID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		member  string
		element string
	}{
		{
			name:    "with element fragment",
			input:   "/mnt/onboard/books/quijote.kepub.epub!!index_split_004.html#kobo.31.5",
			member:  "index_split_004.html",
			element: "kobo.31.5",
		},
		{
			name:   "without element fragment",
			input:  "/mnt/onboard/books/quijote.kepub.epub!!index_split_004.html",
			member: "index_split_004.html",
		},
		{
			name:    "nested member path",
			input:   "/mnt/onboard/quijote.kepub.epub!!OEBPS/ch01.xhtml#p12",
			member:  "OEBPS/ch01.xhtml",
			element: "p12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseContentID(tt.input, "/media/kobo")
			if err != nil {
				t.Fatalf("ParseContentID(%q): %v", tt.input, err)
			}
			if got.Member != tt.member {
				t.Errorf("Member = %q, want %q", got.Member, tt.member)
			}
			if got.Element != tt.element {
				t.Errorf("Element = %q, want %q", got.Element, tt.element)
			}
		})
	}
}

func TestParseContentIDJoinsDeviceRoot(t *testing.T) {
	got, err := ParseContentID("/mnt/onboard/books/quijote.kepub.epub!!ch.html", "/media/kobo")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join("/media/kobo", "books", "quijote.kepub.epub")
	if got.File != want {
		t.Errorf("File = %q, want %q", got.File, want)
	}
}

func TestParseContentIDMalformed(t *testing.T) {
	inputs := []string{
		"",
		"/mnt/onboard/book.kepub.epub",                   // no member separator
		"file:///mnt/onboard/book.kepub.epub!!ch.html",   // volume id prefix
		"/mnt/sdcard/book.kepub.epub!!ch.html",           // wrong mount point
		" /mnt/onboard/book.kepub.epub!!ch.html",         // unanchored
	}
	for _, input := range inputs {
		if _, err := ParseContentID(input, "/media/kobo"); !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseContentID(%q) = %v, want ErrMalformed", input, err)
		}
	}
}

func TestParseContainerPath(t *testing.T) {
	tests := []struct {
		input string
		tag   string
		id    string
	}{
		{"span#kobo.31.5", "span", "kobo.31.5"},
		{"img#cover", "img", "cover"},
		// Literal dots in the id are stored escaped.
		{`span#intro\.note`, "span", "intro.note"},
		// Only the first # separates tag from id.
		{"span#a#b", "span#a", "b"},
	}
	for _, tt := range tests {
		got, err := ParseContainerPath(tt.input)
		if err != nil {
			t.Fatalf("ParseContainerPath(%q): %v", tt.input, err)
		}
		if got.Tag != tt.tag || got.ID != tt.id {
			t.Errorf("ParseContainerPath(%q) = (%q, %q), want (%q, %q)",
				tt.input, got.Tag, got.ID, tt.tag, tt.id)
		}
	}
}

func TestParseContainerPathMalformed(t *testing.T) {
	if _, err := ParseContainerPath("span.kobo"); !errors.Is(err, ErrMalformed) {
		t.Errorf("got %v, want ErrMalformed", err)
	}
}

func TestParseVolumeID(t *testing.T) {
	got, err := ParseVolumeID("file:///mnt/onboard/books/quijote.kepub.epub")
	if err != nil {
		t.Fatal(err)
	}
	if want := "books/quijote.kepub.epub"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if _, err := ParseVolumeID("/mnt/onboard/books/quijote.kepub.epub"); !errors.Is(err, ErrMalformed) {
		t.Errorf("missing scheme: got %v, want ErrMalformed", err)
	}
}

func TestJoinDevicePath(t *testing.T) {
	got := JoinDevicePath("/media/kobo", "books/series/vol1.kepub.epub")
	want := filepath.Join("/media/kobo", "books", "series", "vol1.kepub.epub")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

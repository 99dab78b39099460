package model

import (
	"encoding/json"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func validPost() *Post {
	return &Post{
		ID:        "post-1",
		OwnerID:   "u1",
		OwnerName: "Jess",
		Title:     "Dune",
		Author:    "Frank Herbert",
		Review:    "Sandworms. Would read again.",
		Rating:    4.5,
		CreatedAt: 1700000000000,
	}
}

func TestPostValidate_OK(t *testing.T) {
	if err := validPost().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestPostValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Post)
	}{
		{"missing owner", func(p *Post) { p.OwnerID = " " }},
		{"missing title", func(p *Post) { p.Title = "" }},
		{"missing author", func(p *Post) { p.Author = "" }},
		{"missing review", func(p *Post) { p.Review = "\t" }},
		{"rating too low", func(p *Post) { p.Rating = -0.5 }},
		{"rating too high", func(p *Post) { p.Rating = 5.1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPost()
			tc.mutate(p)
			err := p.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v is not ErrInvalid", err)
			}
		})
	}
}

func TestProfileValidate(t *testing.T) {
	p := &Profile{ID: "u1", Email: "a@b.c", Name: "Jess"}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	p.Name = ""
	if err := p.Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for empty name, got %v", err)
	}
}

func TestMatchesQuery(t *testing.T) {
	p := validPost()

	if !p.MatchesQuery("") {
		t.Error("empty query must match everything")
	}
	if !p.MatchesQuery("dUnE") {
		t.Error("title match should be case-insensitive")
	}
	if !p.MatchesQuery("herbert") {
		t.Error("author should be searched too")
	}
	if p.MatchesQuery("asimov") {
		t.Error("unrelated query must not match")
	}
	if p.MatchesQuery("sandworms") {
		t.Error("review text is not part of the search scope")
	}
}

func TestParseImageRef(t *testing.T) {
	cases := []struct {
		in   string
		kind ImageKind
	}{
		{"", ImageNone},
		{"https://img.example.com/covers/1.jpg", ImageRemoteURL},
		{"http://img.example.com/covers/1.jpg", ImageRemoteURL},
		{"/data/user/0/covers/1.jpg", ImageLocalPath},
		{"covers/1.jpg", ImageLocalPath},
	}
	for _, tc := range cases {
		got := ParseImageRef(tc.in)
		if got.Kind != tc.kind {
			t.Errorf("ParseImageRef(%q).Kind = %q, want %q", tc.in, got.Kind, tc.kind)
		}
		if tc.in != "" && got.Value != tc.in {
			t.Errorf("ParseImageRef(%q).Value = %q", tc.in, got.Value)
		}
	}
}

func TestImageRefIsZero(t *testing.T) {
	if !(ImageRef{}).IsZero() {
		t.Error("zero ref should report IsZero")
	}
	if RemoteImage("https://x/y.png").IsZero() {
		t.Error("remote ref should not be zero")
	}
	if LocalImage("").Kind != ImageNone {
		t.Error("LocalImage(\"\") should collapse to the zero ref")
	}
}

func TestImageRefUnmarshalJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want ImageRef
	}{
		{"tagged object", `{"kind":"remote","value":"https://img.example.com/1.jpg"}`,
			RemoteImage("https://img.example.com/1.jpg")},
		{"legacy url string", `"https://img.example.com/1.jpg"`,
			RemoteImage("https://img.example.com/1.jpg")},
		{"legacy path string", `"/data/user/0/covers/1.jpg"`,
			LocalImage("/data/user/0/covers/1.jpg")},
		{"legacy empty string", `""`, ImageRef{}},
		{"null", `null`, ImageRef{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got ImageRef
			if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestImageRefUnmarshalBSON_LegacyString(t *testing.T) {
	type doc struct {
		Image ImageRef `bson:"image"`
	}

	// Documents written before the kind tag carry the reference as a plain
	// string.
	legacy, err := bson.Marshal(bson.M{"image": "https://img.example.com/1.jpg"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got doc
	if err := bson.Unmarshal(legacy, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Image.Kind != ImageRemoteURL || got.Image.Value != "https://img.example.com/1.jpg" {
		t.Errorf("legacy string decoded to %+v", got.Image)
	}

	nullImage, err := bson.Marshal(bson.M{"image": nil})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var empty doc
	if err := bson.Unmarshal(nullImage, &empty); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !empty.Image.IsZero() {
		t.Errorf("null image decoded to %+v", empty.Image)
	}

	// Tagged documents round-trip unchanged.
	tagged, err := bson.Marshal(doc{Image: LocalImage("/covers/1.jpg")})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back doc
	if err := bson.Unmarshal(tagged, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Image != LocalImage("/covers/1.jpg") {
		t.Errorf("tagged round trip gave %+v", back.Image)
	}
}

package domain

import "testing"

func TestNewCandidatesDedupesAndKeepsOrder(t *testing.T) {
	got := NewCandidates([]ImageSource{
		{URL: "https://cdn.example.com/a.jpg", Name: "front"},
		{URL: ""},
		{URL: "http://www.cdn.example.com/a.jpg"},
		{URL: "https://cdn.example.com/lot/b.jpg?w=1", Folder: " lot "},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Name != "front" || got[0].Order != 0 || got[0].Index != 0 {
		t.Fatalf("unexpected first candidate: %+v", got[0])
	}
	if got[1].Name != "b.jpg" || got[1].Folder != "lot" || got[1].Order != 3 || got[1].Index != 1 {
		t.Fatalf("unexpected second candidate: %+v", got[1])
	}
}

func TestGroupPrompt(t *testing.T) {
	g := Group{Brand: "Acme", Product: " Whey ", Claims: []string{"", "Gluten free"}}
	if got := g.Prompt(); got != "Acme Whey Gluten free" {
		t.Fatalf("unexpected prompt %q", got)
	}
	if got := (Group{}).Prompt(); got != "product photo" {
		t.Fatalf("expected fallback prompt, got %q", got)
	}
}

func TestGroupCloneDoesNotAlias(t *testing.T) {
	g := Group{Images: []string{"a"}, Claims: []string{"c"}}
	c := g.Clone()
	c.Images[0] = "b"
	c.Claims[0] = "d"
	if g.Images[0] != "a" || g.Claims[0] != "c" {
		t.Fatalf("clone aliases source slices")
	}
}

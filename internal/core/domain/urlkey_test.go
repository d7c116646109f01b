package domain

import "testing"

func TestCanonicalImageKey(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "   ", want: ""},
		{name: "plain https", in: "https://cdn.example.com/a/b.jpg", want: "https://cdn.example.com/a/b.jpg"},
		{name: "host case and www", in: "https://WWW.CDN.Example.com/b.jpg", want: "https://cdn.example.com/b.jpg"},
		{name: "default port", in: "https://cdn.example.com:443/b.jpg", want: "https://cdn.example.com/b.jpg"},
		{name: "http upgraded", in: "http://cdn.example.com/b.jpg", want: "https://cdn.example.com/b.jpg"},
		{name: "localhost kept", in: "http://localhost:8080/b.jpg", want: "http://localhost:8080/b.jpg"},
		{name: "trailing slash", in: "https://cdn.example.com/b/", want: "https://cdn.example.com/b"},
		{name: "tracking params", in: "https://cdn.example.com/b.jpg?utm_source=x&w=800&fbclid=1", want: "https://cdn.example.com/b.jpg?w=800"},
		{name: "drive share link", in: "https://drive.google.com/file/d/AbC_12-x/view?usp=sharing", want: "https://drive.google.com/uc?id=AbC_12-x"},
		{name: "drive open link", in: "https://drive.google.com/open?id=AbC_12-x", want: "https://drive.google.com/uc?id=AbC_12-x"},
		{name: "dropbox share", in: "https://www.dropbox.com/s/k3y/photo.jpg?dl=0", want: "https://dropbox.com/s/k3y/photo.jpg"},
		{name: "dropbox direct", in: "https://dl.dropboxusercontent.com/s/k3y/photo.jpg?raw=1", want: "https://dropbox.com/s/k3y/photo.jpg"},
		{name: "proxied", in: "https://proxy.example.net/fetch?url=http%3A%2F%2Fcdn.example.com%2Fb.jpg", want: "https://cdn.example.com/b.jpg"},
		{name: "not a url", in: " photo-1.jpg ", want: "photo-1.jpg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanonicalImageKey(tc.in); got != tc.want {
				t.Fatalf("CanonicalImageKey(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCanonicalImageKeyIsIdempotent(t *testing.T) {
	inputs := []string{
		"http://www.cdn.example.com/b.jpg?utm_source=x",
		"https://drive.google.com/file/d/AbC/view",
		"https://www.dropbox.com/s/k3y/photo.jpg?dl=1",
		"https://proxy.example.net/fetch?src=https://cdn.example.com/b.jpg",
	}
	for _, in := range inputs {
		once := CanonicalImageKey(in)
		if twice := CanonicalImageKey(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestSameImage(t *testing.T) {
	if !SameImage("https://drive.google.com/file/d/X1/view", "https://drive.google.com/uc?id=X1&export=download") {
		t.Fatalf("expected drive variants to match")
	}
	if SameImage("", "") {
		t.Fatalf("empty urls must not match")
	}
	if SameImage("https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg") {
		t.Fatalf("distinct images must not match")
	}
}

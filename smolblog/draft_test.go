package smolblog

import (
	"strings"
	"testing"
)

func TestDraftValidate(t *testing.T) {
	var tests = []struct {
		name     string
		username *string
		content  *string
		error    string
	}{
		{"Valid", strptr("alice"), strptr("hello"), ""},
		{"NoUsername", nil, strptr("hello"), "username is required"},
		{"NoContent", strptr("alice"), nil, "post_content is required"},
		{"NothingAtAll", nil, nil, "is required"},
		{"BlankUsername", strptr("  "), strptr("hello"), ""},
		{"BlankContent", strptr("alice"), strptr("\n\t"), ""},
		{"EmptyBoth", strptr(""), strptr(""), ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d := Draft{Username: test.username, Content: test.content}

			err := d.Validate()
			if test.error == "" {
				if err != nil {
					t.Fatal("Unexpected error:", err)
				}
				return
			}

			if !IsKind(err, Validation) {
				t.Fatal("Unexpected error kind:", err)
			}

			if !strings.Contains(err.Error(), test.error) {
				t.Fatalf("Expected %q in error, got %q", test.error, err)
			}
		})
	}
}

func TestDraftLastWriteWins(t *testing.T) {
	var d Draft
	d.SetUsername("alice")
	d.SetUsername("bob")

	d.SetImage(StoredAsset{Name: "1.png", Ref: "/app/uploads/1.png"})
	d.SetImage(StoredAsset{Name: "2.png", Ref: "/app/uploads/2.png"})
	d.SetAvatar(StoredAsset{Name: "3.gif", Ref: "/app/uploads/3.gif"})

	if *d.Username != "bob" {
		t.Fatal("Unexpected username:", *d.Username)
	}

	if *d.ImagePath != "/app/uploads/2.png" {
		t.Fatal("Unexpected image path:", *d.ImagePath)
	}

	if names := strings.Join(d.AssetNames(), ","); names != "1.png,2.png,3.gif" {
		t.Fatal("Unexpected asset names:", names)
	}

	replaced := d.Replaced()
	if len(replaced) != 1 || replaced[0].Name != "1.png" {
		t.Fatal("Unexpected replaced assets:", replaced)
	}
}

func TestPostView(t *testing.T) {
	p := Post{ID: 42, Username: "alice", Content: "hello", AvatarPath: strptr("/a.png")}
	v := p.View()

	if v.ImagePath != "" {
		t.Fatal("Absent image path is not empty:", v.ImagePath)
	}

	if v.AvatarPath != "/a.png" {
		t.Fatal("Unexpected avatar path:", v.AvatarPath)
	}

	if v.Anchor() != "post-42" {
		t.Fatal("Unexpected anchor:", v.Anchor())
	}

	if u := PostURL(42); u != "/home#post-42" {
		t.Fatal("Unexpected post URL:", u)
	}
}

package pathnorm

import "testing"

func Test_Normalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"drive upper", `C:\data\x.txt`, "/cygdrive/c/data/x.txt"},
		{"drive lower", `d:\Work\Report.DOC`, "/cygdrive/d/Work/Report.DOC"},
		{"drive root", `E:\`, "/cygdrive/e/"},
		{"unc share", `\\server\share\f`, "//server/share/f"},
		{"relative backslashes", `dir\sub\file`, "dir/sub/file"},
		{"portable passthrough", "/etc/csync2.cfg", "/etc/csync2.cfg"},
		{"cygdrive passthrough", "/cygdrive/c/data", "/cygdrive/c/data"},
		{"drive with forward slash untouched", "C:/data", "C:/data"},
		{"bare drive untouched", "C:", "C:"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func Test_Normalize_Idempotent(t *testing.T) {
	inputs := []string{
		`C:\data\x.txt`,
		`z:\`,
		`\\server\share`,
		`a\b\c`,
		"/already/portable",
		`C:\C:\nested`,
		`1:\not-a-drive`,
		"",
	}
	for _, p := range inputs {
		once := Normalize(p)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", p, once, twice)
		}
	}
}

func Test_Encode(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/etc/hosts", "/etc/hosts"},
		{"/srv/my file", "/srv/my%20file"},
		{"/a:b|c", "/a%3Ab%7Cc"},
		{"100%", "100%25"},
		{"it's \"q\" $x", "it%27s%20%22q%22%20%24x"},
		{"tab\there", "tab%09here"},
	}
	for _, tt := range tests {
		got := Encode(tt.input)
		if got != tt.want {
			t.Errorf("Encode(%q) = %q, want %q", tt.input, got, tt.want)
		}
		if back := Decode(got); back != tt.input {
			t.Errorf("Decode(Encode(%q)) = %q", tt.input, back)
		}
	}
}

func Test_Decode_MalformedEscapes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"%", "%"},
		{"%4", "%4"},
		{"%zz", "%zz"},
		{"a%2fb", "a/b"},
	}
	for _, tt := range tests {
		if got := Decode(tt.input); got != tt.want {
			t.Errorf("Decode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

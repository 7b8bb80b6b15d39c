package vpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{":", ":/"},
		{":/", ":/"},
		{":/lib/foo.risor", ":/lib/foo.risor"},
		{":/lib/./foo.risor", ":/lib/foo.risor"},
		{":/lib/sub/../foo.risor", ":/lib/foo.risor"},
		{":/../../foo.risor", ":/foo.risor"},
		{":lib/foo.risor", ":/lib/foo.risor"},
		{":/C:/lib/baz.risor", ":/lib/baz.risor"},
		{":/c:/lib/baz.risor", ":/lib/baz.risor"},
		{`:\D:\lib\baz.risor`, ":/lib/baz.risor"},
		{":/C:/D:/lib/baz.risor", ":/lib/baz.risor"},
		{":/lib/C:/baz.risor", ":/lib/C:/baz.risor"},
		{"/real/path/../x.risor", "/real/path/../x.risor"},
		{"relative/x", "relative/x"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := Canonical(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Canonical(got), "Canonical must be idempotent")
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		request string
		caller  string
		want    string
	}{
		{"sibling", "bar.risor", ":/lib/foo.risor", ":/lib/bar.risor"},
		{"parent", "../bar.risor", ":/lib/sub/foo.risor", ":/lib/bar.risor"},
		{"absolute virtual ignores caller", ":/x/y.risor", ":/lib/foo.risor", ":/x/y.risor"},
		{"drive letter caller", "baz.risor", ":/C:/lib/foo.risor", ":/lib/baz.risor"},
		{"real caller", "bar.risor", "/srv/scripts/foo.risor", "/srv/scripts/bar.risor"},
		{"no caller", "bar.risor", "", "bar.risor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			first := Resolve(tt.request, tt.caller)
			assert.Equal(t, tt.want, first)
			assert.Equal(t, first, Resolve(tt.request, tt.caller))
		})
	}
}

func TestJoin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ":/foo.risor", Join(":", "foo.risor"))
	assert.Equal(t, ":/lib/foo.risor", Join(":/lib", "foo.risor"))
	assert.Equal(t, ":/vendor/kit/foo.risor", Join(":/vendor/kit/", "foo.risor"))
	assert.Equal(t, ":/lib/foo.risor", Join(":/lib/sub", "../foo.risor"))
	assert.Equal(t, "/opt/lib/foo.risor", Join("/opt/lib", "foo.risor"))
}

func TestWithExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "bar.risor", WithExtension("bar", ".risor"))
	assert.Equal(t, "bar.risor", WithExtension("bar.risor", ".risor"))
	assert.Equal(t, "bar.txt.risor", WithExtension("bar.txt", ".risor"))
	assert.Equal(t, "bar", WithExtension("bar", ""))
}

func TestFSMapping(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "lib/foo.risor", ToFS(":/lib/foo.risor"))
	assert.Equal(t, ".", ToFS(":/"))
	assert.Equal(t, ".", ToFS(":"))
	assert.Equal(t, ":/lib/foo.risor", FromFS("lib/foo.risor"))
	assert.Equal(t, ":/", FromFS("."))
}

func TestIsVirtual(t *testing.T) {
	t.Parallel()

	assert.True(t, IsVirtual(":/lib"))
	assert.True(t, IsVirtual(":"))
	assert.False(t, IsVirtual("/lib"))
	assert.False(t, IsVirtual("lib:x"))
}

package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	assert.Equal(t, "Hello world", Text("  <b>Hello</b>\n\t <script>alert(1)</script>world "))
	assert.Equal(t, "ab", Text("a\x1bb"))
	assert.Equal(t, "Tom & Jerry", Text("Tom &amp; Jerry"))
}

func TestRichTextKeepsSafeMarkup(t *testing.T) {
	out := RichText(`<p onclick="x()">Keep <strong>this</strong></p><script>alert(1)</script>`)
	assert.Equal(t, "<p>Keep <strong>this</strong></p>", out)
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "bruce@wayne.test", Email("  Bruce@Wayne.TEST "))
}

func TestFilename(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":       "passwd",
		`C:\Users\alfred\cv.pdf`: "cv.pdf",
		"my photo (1).png":       "my_photo_1.png",
		"...":                    "file",
		"":                       "file",
		"report-2024_final.docx": "report-2024_final.docx",
		"report..v2.txt":         "report..v2.txt",
	}
	for in, want := range cases {
		assert.Equal(t, want, Filename(in), in)
	}
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `100\% \_done\\`, LikePattern(` 100% _done\ `))
}

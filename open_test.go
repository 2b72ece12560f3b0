package ext2

import (
	"errors"
	"testing"
	"unicode/utf8"
)

func TestOpenScenarios(t *testing.T) {
	fs, err := testFS()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("empty path", func(t *testing.T) {
		_, err := fs.Open("")
		var notAbs *NotAbsoluteError
		if !errors.As(err, &notAbs) {
			t.Fatalf("expected NotAbsoluteError, got %v", err)
		}
		if notAbs.Name != "" {
			t.Errorf("name %q, expected empty", notAbs.Name)
		}
	})

	t.Run("relative path", func(t *testing.T) {
		_, err := fs.Open("foo")
		var notAbs *NotAbsoluteError
		if !errors.As(err, &notAbs) {
			t.Fatalf("expected NotAbsoluteError, got %v", err)
		}
		if notAbs.Name != "foo" {
			t.Errorf("name %q, expected %q", notAbs.Name, "foo")
		}
	})

	t.Run("root", func(t *testing.T) {
		in, err := fs.Open("/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if in.Number() != RootInodeNumber || !in.IsDir() {
			t.Errorf("root resolved to inode %d, dir %v", in.Number(), in.IsDir())
		}
	})

	t.Run("missing entry", func(t *testing.T) {
		_, err := fs.Open("/nope")
		var notFound *NotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
		if notFound.Name != "/nope" {
			t.Errorf("name %q, expected %q", notFound.Name, "/nope")
		}
	})

	t.Run("file mid-path", func(t *testing.T) {
		_, err := fs.Open("/hello.txt/x")
		var notDir *NotADirectoryError
		if !errors.As(err, &notDir) {
			t.Fatalf("expected NotADirectoryError, got %v", err)
		}
		if notDir.Inode != testHelloInode {
			t.Errorf("inode %d, expected %d", notDir.Inode, testHelloInode)
		}
	})

	t.Run("file at top level", func(t *testing.T) {
		in, err := fs.Open("/hello.txt")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if in.Number() != testHelloInode {
			t.Errorf("inode %d, expected %d", in.Number(), testHelloInode)
		}
	})

	t.Run("nested file", func(t *testing.T) {
		in, err := fs.Open("/sub/README.md")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, err := in.ReadAll()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != testReadmeContent {
			t.Errorf("read %q, expected %q", data, testReadmeContent)
		}
		if !utf8.Valid(data) {
			t.Errorf("contents are not valid UTF-8")
		}
	})

	t.Run("dangling entry", func(t *testing.T) {
		// corrupt the image: point hello.txt's entry at an inode past
		// the filesystem
		img := testImage()
		entryOffset := 8*testBlockSize + 12 + 12
		img[entryOffset] = 0xff
		img[entryOffset+1] = 0x00
		img[entryOffset+2] = 0x00
		img[entryOffset+3] = 0x00

		broken, err := Read(testVolumeFrom(img))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err = broken.Open("/hello.txt")
		var notFound *InodeNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected InodeNotFoundError, got %v", err)
		}
		if notFound.Inode != 0xff {
			t.Errorf("inode %d, expected %d", notFound.Inode, 0xff)
		}
	})
}

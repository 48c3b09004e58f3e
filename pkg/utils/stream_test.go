package utils

import (
	"io"
	"strings"
	"testing"
)

func TestMD5ReaderComputesChecksum(t *testing.T) {
	// md5("hello world") = 5eb63bbbe01eeed093cb22bb8f5acdc3
	reader := NewMD5Reader(strings.NewReader("hello world"))

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("reader corrupted data: %q", data)
	}

	if got := reader.Checksum(); got != "5eb63bbbe01eeed093cb22bb8f5acdc3" {
		t.Errorf("unexpected checksum: %s", got)
	}
}

func TestMD5ReaderEmptyInput(t *testing.T) {
	// md5("") = d41d8cd98f00b204e9800998ecf8427e
	reader := NewMD5Reader(strings.NewReader(""))

	if _, err := io.ReadAll(reader); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got := reader.Checksum(); got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("unexpected checksum: %s", got)
	}
}

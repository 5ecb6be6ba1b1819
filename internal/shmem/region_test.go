package shmem

import (
	"fmt"
	"os"
	"testing"
)

func testName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("audiotap.shmem.test.%d.%s", os.Getpid(), t.Name())
}

func TestCreateOpenRoundTrip(t *testing.T) {
	name := testName(t)

	writer, err := Create(name, 128)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer writer.Unlink()
	defer writer.Close()

	if writer.Size() != 128 {
		t.Errorf("Size: got %d, want 128", writer.Size())
	}
	if !Available(name) {
		t.Error("Available false after Create")
	}

	reader, err := Open(name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	if reader.Size() != 128 {
		t.Errorf("reader Size: got %d, want 128", reader.Size())
	}

	// Both mappings view the same memory.
	writer.Bytes()[0] = 0xAB
	if reader.Bytes()[0] != 0xAB {
		t.Error("write through one mapping not visible through the other")
	}
	reader.Bytes()[1] = 0xCD
	if writer.Bytes()[1] != 0xCD {
		t.Error("write through reader mapping not visible to writer")
	}
}

func TestCreateReplacesStaleRegion(t *testing.T) {
	name := testName(t)

	old, err := Create(name, 64)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	old.Bytes()[0] = 0xFF
	old.Close()

	fresh, err := Create(name, 64)
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	defer fresh.Unlink()
	defer fresh.Close()

	if fresh.Bytes()[0] != 0 {
		t.Error("recreated region kept stale contents")
	}
}

func TestOpenMissingRegion(t *testing.T) {
	if _, err := Open(testName(t)); err == nil {
		t.Error("Open of missing region succeeded")
	}
}

func TestCreateRejectsBadSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := Create(testName(t), size); err == nil {
			t.Errorf("Create with size %d succeeded", size)
		}
	}
}

func TestCloseAndUnlinkIdempotent(t *testing.T) {
	name := testName(t)

	region, err := Create(name, 32)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := region.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := region.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := region.Unlink(); err != nil {
		t.Errorf("first Unlink: %v", err)
	}
	if err := region.Unlink(); err != nil {
		t.Errorf("second Unlink: %v", err)
	}
	if Available(name) {
		t.Error("region still available after Unlink")
	}
}

func TestUnlinkLeavesExistingMappings(t *testing.T) {
	name := testName(t)

	writer, err := Create(name, 32)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer writer.Close()

	reader, err := Open(name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	if err := writer.Unlink(); err != nil {
		t.Fatalf("Unlink: %v", err)
	}

	// The name is gone but the mapped view still works.
	writer.Bytes()[3] = 0x42
	if reader.Bytes()[3] != 0x42 {
		t.Error("mapping broken by Unlink")
	}
	if _, err := Open(name); err == nil {
		t.Error("Open succeeded after Unlink")
	}
}

package memsys

import "testing"

func TestAttachAndLoadChild(t *testing.T) {
	p := newTestPool(t, 64, 4)
	parent, _ := p.GetBufferBlocking()
	defer parent.Release()

	c1, _ := p.GetBufferBlocking()
	copy(c1.Data(), []byte("alice"))
	idx1 := parent.AttachChild(c1)
	c1.Release()

	c2, _ := p.GetBufferBlocking()
	copy(c2.Data(), []byte("bob"))
	idx2 := parent.AttachChild(c2)
	c2.Release()

	if idx1 != 0 || idx2 != 1 {
		t.Fatalf("indices = %d,%d want 0,1", idx1, idx2)
	}
	if parent.NumberOfChildren() != 2 {
		t.Fatalf("NumberOfChildren = %d, want 2", parent.NumberOfChildren())
	}

	loaded, err := parent.LoadChild(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer loaded.Release()
	if string(loaded.Data()[:3]) != "bob" {
		t.Fatalf("child 1 = %q, want bob", loaded.Data()[:3])
	}
}

func TestLoadChildOutOfRange(t *testing.T) {
	p := newTestPool(t, 16, 1)
	parent, _ := p.GetBufferBlocking()
	defer parent.Release()
	if _, err := parent.LoadChild(0); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestParentKeepsChildAlive(t *testing.T) {
	p := newTestPool(t, 16, 2)
	parent, _ := p.GetBufferBlocking()

	child, _ := p.GetBufferBlocking()
	parent.AttachChild(child)
	child.Release() // drop the caller's own strong ref; parent still holds one

	// pool should now be fully exhausted: one segment held by parent,
	// one held (transitively) by the attached child.
	if _, ok := p.GetBufferNonBlocking(); ok {
		t.Fatal("expected pool exhausted while parent+child are alive")
	}

	parent.Release() // drops parent, which cascades into releasing the child
	if _, ok := p.GetBufferNonBlocking(); !ok {
		t.Fatal("expected a free segment after parent release")
	}
	if _, ok := p.GetBufferNonBlocking(); !ok {
		t.Fatal("expected the second free segment (child) after parent release")
	}
}

func TestStampSetsMetadata(t *testing.T) {
	p := newTestPool(t, 16, 1)
	buf, _ := p.GetBufferBlocking()
	defer buf.Release()
	buf.Stamp(7, 42, 1000)
	if buf.OriginID() != 7 || buf.SequenceNumber() != 42 || buf.WatermarkTS() != 1000 {
		t.Fatalf("stamp mismatch: %+v", buf)
	}
	if buf.CreationTS() == 0 {
		t.Fatal("expected non-zero creation timestamp")
	}
}

func TestOnRecycleFiresOnce(t *testing.T) {
	p := newTestPool(t, 16, 1)
	buf, _ := p.GetBufferBlocking()
	n := 0
	buf.OnRecycle(func([]byte) { n++ })
	other := buf.Retain()
	buf.Release()
	if n != 0 {
		t.Fatalf("recycle fired early: %d", n)
	}
	other.Release()
	if n != 1 {
		t.Fatalf("recycle fired %d times, want 1", n)
	}
}

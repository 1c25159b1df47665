package memsys

import "testing"

func TestRecordRowLayoutRoundTrip(t *testing.T) {
	p := newTestPool(t, 160, 1)
	buf, _ := p.GetBufferBlocking()
	defer buf.Release()

	schema := NewSchema(RowMajor, Field{"id", Int64}, Field{"one", Int64})
	cap := schema.Capacity(buf.Size())
	buf.SetNumberOfTuples(cap)

	for i := 0; i < cap; i++ {
		r := Record{Buf: buf, Schema: schema, TupleIndex: i, Capacity: cap}
		if err := r.SetInt64("id", int64(i)); err != nil {
			t.Fatal(err)
		}
		if err := r.SetInt64("one", 1); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < cap; i++ {
		r := Record{Buf: buf, Schema: schema, TupleIndex: i, Capacity: cap}
		id, err := r.GetInt64("id")
		if err != nil {
			t.Fatal(err)
		}
		if id != int64(i) {
			t.Fatalf("id[%d] = %d, want %d", i, id, i)
		}
		one, _ := r.GetInt64("one")
		if one != 1 {
			t.Fatalf("one[%d] = %d, want 1", i, one)
		}
	}
}

func TestRecordTextFieldRoundTrip(t *testing.T) {
	p := newTestPool(t, 64, 4)
	buf, _ := p.GetBufferBlocking()
	defer buf.Release()

	schema := NewSchema(RowMajor, Field{"name", Text})
	cap := schema.Capacity(buf.Size())
	buf.SetNumberOfTuples(cap)

	r0 := Record{Buf: buf, Schema: schema, TupleIndex: 0, Capacity: cap}
	if err := r0.SetText("name", "alice", p); err != nil {
		t.Fatal(err)
	}
	if cap > 1 {
		r1 := Record{Buf: buf, Schema: schema, TupleIndex: 1, Capacity: cap}
		if err := r1.SetText("name", "bob", p); err != nil {
			t.Fatal(err)
		}
		got, err := r1.GetText("name")
		if err != nil {
			t.Fatal(err)
		}
		if got != "bob" {
			t.Fatalf("name[1] = %q, want bob", got)
		}
	}
	got0, err := r0.GetText("name")
	if err != nil {
		t.Fatal(err)
	}
	if got0 != "alice" {
		t.Fatalf("name[0] = %q, want alice", got0)
	}
	if buf.NumberOfChildren() < 1 {
		t.Fatal("expected attached child buffers")
	}
}

func TestRecordFloatAndBool(t *testing.T) {
	p := newTestPool(t, 32, 1)
	buf, _ := p.GetBufferBlocking()
	defer buf.Release()
	schema := NewSchema(RowMajor, Field{"v", Float64}, Field{"flag", Bool})
	r := Record{Buf: buf, Schema: schema, TupleIndex: 0, Capacity: 1}
	if err := r.SetFloat64("v", 3.5); err != nil {
		t.Fatal(err)
	}
	if err := r.SetBool("flag", true); err != nil {
		t.Fatal(err)
	}
	v, _ := r.GetFloat64("v")
	if v != 3.5 {
		t.Fatalf("v = %v, want 3.5", v)
	}
	flag, _ := r.GetBool("flag")
	if !flag {
		t.Fatal("flag = false, want true")
	}
}

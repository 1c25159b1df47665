package runtime_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/streamforge/corex/memsys"
	"github.com/streamforge/corex/runtime"
)

var _ = Describe("WorkerContext", func() {
	var (
		pool *memsys.BufferPool
		wc   *runtime.WorkerContext
	)

	BeforeEach(func() {
		pool = memsys.NewBufferPool(memsys.Config{SegmentSize: 16, Capacity: 4}, nil)
		var err error
		wc, err = runtime.NewWorkerContext(1, pool, 2, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = wc.Close()
	})

	It("round-trips replay storage per partition", func() {
		Expect(wc.PutReplay("q::op::0::0", 7, []byte("payload"))).To(Succeed())
		data, ok := wc.GetReplay("q::op::0::0", 7)
		Expect(ok).To(BeTrue())
		Expect(string(data)).To(Equal("payload"))

		wc.DropReplay("q::op::0::0", 7)
		_, ok = wc.GetReplay("q::op::0::0", 7)
		Expect(ok).To(BeFalse())
	})

	It("tracks object refcounts independent of memsys", func() {
		Expect(wc.RetainObject(42)).To(Equal(int32(1)))
		Expect(wc.RetainObject(42)).To(Equal(int32(2)))
		Expect(wc.ReleaseObject(42)).To(Equal(int32(1)))
		Expect(wc.ReleaseObject(42)).To(Equal(int32(0)))
		Expect(wc.ReleaseObject(42)).To(Equal(int32(0)))
	})
})

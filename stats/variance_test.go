package stats

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Mean", func() {
	It("should be empty at first", func() {
		var m Mean

		Expect(m.NumberOfSamples()).To(BeZero())
		Expect(m.Mean()).To(BeZero())
	})

	It("should track count, sum, and extremes", func() {
		var m Mean
		for _, x := range []float64{4, -2, 10, 0} {
			m.Add(x)
		}

		Expect(m.NumberOfSamples()).To(Equal(int64(4)))
		Expect(m.Sum()).To(Equal(12.0))
		Expect(m.Min()).To(Equal(-2.0))
		Expect(m.Max()).To(Equal(10.0))
		Expect(m.Mean()).To(Equal(3.0))

		m.Reset()
		Expect(m).To(Equal(Mean{}))
	})
})

var _ = Describe("Variance", func() {
	var v Variance

	BeforeEach(func() {
		v = Variance{}
	})

	It("should report zero spread with one sample", func() {
		v.Add(7)

		Expect(v.Variance()).To(BeZero())
		_, err := v.Confidence(0.95)
		Expect(err).To(MatchError(ErrNoSamples))
	})

	It("should compute the sample variance", func() {
		for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
			v.Add(x)
		}

		Expect(v.Mean()).To(Equal(5.0))
		Expect(v.Variance()).To(BeNumerically("~", 32.0/7, 1e-12))
		Expect(v.StdDev()).To(BeNumerically("~", math.Sqrt(32.0/7), 1e-12))
		Expect(v.Min()).To(Equal(2.0))
		Expect(v.Max()).To(Equal(9.0))
	})

	It("should give a Student's t confidence interval", func() {
		for _, x := range []float64{1, 2, 3, 4, 5} {
			v.Add(x)
		}

		half, err := v.Confidence(0.95)
		Expect(err).NotTo(HaveOccurred())

		// t(0.975, 4) = 2.7764
		Expect(half).To(BeNumerically("~", 2.7764*math.Sqrt(2.5)/math.Sqrt(5), 1e-3))

		_, err = v.Confidence(1)
		Expect(err).To(MatchError(ErrInvalidParameter))
	})

	It("should not go negative for constant samples", func() {
		for i := 0; i < 1000; i++ {
			v.Add(0.1)
		}

		Expect(v.Variance()).To(BeNumerically(">=", 0))
		Expect(v.Variance()).To(BeNumerically("<", 1e-12))
	})
})

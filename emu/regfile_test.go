package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/avrsim/emu"
)

var _ = Describe("RegFile", func() {
	var rf *emu.RegFile

	BeforeEach(func() {
		rf = &emu.RegFile{}
	})

	It("should read back written registers", func() {
		Expect(rf.WriteRegister(31, 0xA5)).To(Succeed())

		v, err := rf.ReadRegister(31)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(uint8(0xA5)))
	})

	It("should reject register indices outside r0-r31", func() {
		_, err := rf.ReadRegister(32)
		Expect(err).To(MatchError(emu.ErrRegisterOutOfRange))

		Expect(rf.WriteRegister(-1, 0)).To(MatchError(emu.ErrRegisterOutOfRange))
	})

	It("should expose register pairs little-endian", func() {
		rf.SetPair(emu.RegZ, 0x1234)

		lo, _ := rf.ReadRegister(30)
		hi, _ := rf.ReadRegister(31)
		Expect(lo).To(Equal(uint8(0x34)))
		Expect(hi).To(Equal(uint8(0x12)))
		Expect(rf.Pair(emu.RegZ)).To(Equal(uint16(0x1234)))
	})

	DescribeTable("UpdateZeroNegativeFlags",
		func(result uint8, z, n bool) {
			rf.UpdateZeroNegativeFlags(result)

			Expect(rf.Flag(emu.FlagZ)).To(Equal(z))
			Expect(rf.Flag(emu.FlagN)).To(Equal(n))
		},
		Entry("zero", uint8(0x00), true, false),
		Entry("positive", uint8(0x7F), false, false),
		Entry("negative", uint8(0x80), false, true),
	)

	It("should decode SREG into a flags snapshot", func() {
		rf.SetSREG(1<<emu.FlagI | 1<<emu.FlagC)

		flags := rf.FlagsSnapshot()
		Expect(flags.I).To(BeTrue())
		Expect(flags.C).To(BeTrue())
		Expect(flags.Z).To(BeFalse())
	})
})

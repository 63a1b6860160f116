package apu

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"gbapu/hw/hwdefs"
)

type delta struct {
	Time  uint32
	Delta int32
}

type recorder struct {
	deltas []delta
}

func (r *recorder) AddDelta(time uint32, d int32) {
	r.deltas = append(r.deltas, delta{time, d})
}

func (r *recorder) sum() int32 {
	var s int32
	for _, d := range r.deltas {
		s += d.Delta
	}
	return s
}

func newTestAPU(t *testing.T) (a *APU, center, left, right *recorder) {
	t.Helper()

	center, left, right = &recorder{}, &recorder{}, &recorder{}
	a = New()
	a.SetOutput(center, left, right)
	return a, center, left, right
}

type write struct {
	addr uint16
	val  uint8
}

func writeAll(a *APU, time uint32, writes ...write) {
	for _, w := range writes {
		a.Write(time, w.addr, w.val)
	}
}

// channel 1 on, max volume, 50% duty, mid frequency.
var pulseScenario = []write{
	{hwdefs.NR52, 0x80},
	{hwdefs.NR50, 0x77},
	{hwdefs.NR51, 0xFF},
	{hwdefs.NR11, 0x80},
	{hwdefs.NR12, 0xF0},
	{hwdefs.NR13, 0x00},
	{hwdefs.NR14, 0x86},
}

func TestPowerUpRegisters(t *testing.T) {
	a, _, _, _ := newTestAPU(t)

	want := []uint8{
		0x80, 0x3F, 0x00, 0xFF, 0xBF, // NR10-NR14
		0xFF, 0x3F, 0x00, 0xFF, 0xBF, // FF15, NR21-NR24
		0x7F, 0xFF, 0x9F, 0xFF, 0xBF, // NR30-NR34
		0xFF, 0xFF, 0x00, 0x00, 0xBF, // FF1F, NR41-NR44
		0x77, 0xF3, 0xF0, // NR50-NR52
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, // FF27-FF2F
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // wave RAM
	}

	var got []uint8
	for addr := hwdefs.RegStart; addr <= hwdefs.RegEnd; addr++ {
		got = append(got, a.ReadRegister(0, addr))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("power-up registers mismatch (-want +got):\n%s", diff)
	}
	if a.Status() != 0 {
		t.Errorf("Status() = %02x after power-up, want 0", a.Status())
	}
}

func TestReadMasks(t *testing.T) {
	a, _, _, _ := newTestAPU(t)

	for addr := hwdefs.RegStart; addr < hwdefs.WaveRAM; addr++ {
		a.Write(0, addr, 0x00)
	}
	for addr := hwdefs.RegStart; addr < hwdefs.WaveRAM; addr++ {
		want := readMasks[addr-hwdefs.RegStart]
		if got := a.ReadRegister(0, addr); got != want {
			t.Errorf("%s = %02x, want %02x", hwdefs.RegName(addr), got, want)
		}
	}
}

func TestWriteOutsideRangeIgnored(t *testing.T) {
	a, center, left, right := newTestAPU(t)

	a.Write(0, 0xFF00, 0x12)
	a.Write(0, 0xFF40, 0x12)
	a.Write(0, 0xFF15, 0x12)
	a.Write(0, 0xFF27, 0x12)

	if got := a.ReadRegister(0, 0xFF15); got != 0xFF {
		t.Errorf("FF15 = %02x, want ff", got)
	}
	if got := a.ReadRegister(0, 0xFF27); got != 0xFF {
		t.Errorf("FF27 = %02x, want ff", got)
	}
	if n := len(center.deltas) + len(left.deltas) + len(right.deltas); n != 0 {
		t.Errorf("got %d deltas, want none", n)
	}
}

func TestPulseTrigger(t *testing.T) {
	a, center, left, right := newTestAPU(t)

	writeAll(a, 0, pulseScenario...)
	if a.Status() != 0x01 {
		t.Fatalf("Status() = %02x, want 01", a.Status())
	}

	a.EndFrame(hwdefs.FrameClocks)

	const amp = 15 * 8 * ampUnit
	// 50% duty, period (2048-0x600)*4 clocks per step.
	want := []delta{
		{0, amp},
		{2048, -2 * amp},
		{5 * 2048, 2 * amp},
		{9 * 2048, -2 * amp},
	}
	if diff := cmp.Diff(want, center.deltas[:4]); diff != "" {
		t.Errorf("pulse deltas mismatch (-want +got):\n%s", diff)
	}
	if len(left.deltas) != 0 || len(right.deltas) != 0 {
		t.Errorf("got deltas on left/right: %v %v", left.deltas, right.deltas)
	}
	for _, d := range center.deltas {
		if d.Time > hwdefs.FrameClocks {
			t.Fatalf("delta at %d, past the frame end", d.Time)
		}
	}
}

func TestRouting(t *testing.T) {
	a, center, left, right := newTestAPU(t)
	writeAll(a, 0, pulseScenario...)

	const amp = 15 * 8 * ampUnit
	if got := center.sum(); got != amp {
		t.Fatalf("center = %d, want %d", got, amp)
	}

	// channel 1 left only
	a.Write(100, hwdefs.NR51, 0x10)
	if got := center.sum(); got != 0 {
		t.Errorf("center = %d after routing left, want 0", got)
	}
	if got := left.sum(); got != amp {
		t.Errorf("left = %d, want %d", got, amp)
	}

	// channel 1 right only
	a.Write(200, hwdefs.NR51, 0x01)
	if got := left.sum(); got != 0 {
		t.Errorf("left = %d after routing right, want 0", got)
	}
	if got := right.sum(); got != amp {
		t.Errorf("right = %d, want %d", got, amp)
	}

	// muted
	a.Write(300, hwdefs.NR51, 0x00)
	if got := right.sum(); got != 0 {
		t.Errorf("right = %d after muting, want 0", got)
	}
}

func TestMasterVolume(t *testing.T) {
	a, center, _, _ := newTestAPU(t)
	writeAll(a, 0, pulseScenario...)

	a.Write(10, hwdefs.NR50, 0x00)
	if got, want := center.sum(), int32(15*ampUnit); got != want {
		t.Errorf("center = %d with NR50=00, want %d", got, want)
	}
	a.Write(20, hwdefs.NR50, 0x30)
	if got, want := center.sum(), int32(15*4*ampUnit); got != want {
		t.Errorf("center = %d with NR50=30, want %d", got, want)
	}
}

func TestLengthExpiry(t *testing.T) {
	a, center, _, _ := newTestAPU(t)
	writeAll(a, 0, pulseScenario[:6]...)
	a.Write(0, hwdefs.NR11, 0x80|0x3F) // length 1
	a.Write(0, hwdefs.NR14, 0xC6)      // trigger, length enabled

	if got := a.ReadRegister(seqPeriod-1, hwdefs.NR52); got&0x01 == 0 {
		t.Fatalf("NR52 = %02x before length expiry, want channel 1 on", got)
	}
	if got := a.ReadRegister(seqPeriod, hwdefs.NR52); got&0x01 != 0 {
		t.Errorf("NR52 = %02x after length expiry, want channel 1 off", got)
	}
	if got := center.sum(); got != 0 {
		t.Errorf("center = %d after length expiry, want 0", got)
	}
}

func TestLengthExtraClock(t *testing.T) {
	a, _, _, _ := newTestAPU(t)
	writeAll(a, 0, pulseScenario[:6]...)
	a.Write(0, hwdefs.NR11, 0x80|0x3F) // length 1
	a.Write(0, hwdefs.NR14, 0x86)      // trigger, length disabled

	// After step 0, the next step doesn't clock length: enabling the length
	// counter clocks it once, which expires it.
	a.Write(seqPeriod+10, hwdefs.NR14, 0x46)
	if a.Status()&0x01 != 0 {
		t.Errorf("Status() = %02x, want channel 1 off", a.Status())
	}
}

func TestLengthTriggerReload(t *testing.T) {
	a, _, _, _ := newTestAPU(t)
	writeAll(a, 0, pulseScenario[:6]...)
	a.Write(0, hwdefs.NR11, 0x80|0x3F)
	a.Write(0, hwdefs.NR14, 0xC6)
	a.Write(seqPeriod, hwdefs.NR13, 0x00) // runs past step 0, expired

	if a.Square1.length.counter != 0 {
		t.Fatalf("length = %d, want 0", a.Square1.length.counter)
	}
	// Step 1 is next, retriggering with length enabled loads 64-1.
	a.Write(seqPeriod+1, hwdefs.NR14, 0xC6)
	if got := a.Square1.length.counter; got != 63 {
		t.Errorf("length = %d after trigger, want 63", got)
	}
	if a.Status()&0x01 == 0 {
		t.Errorf("channel 1 should be on after trigger")
	}
}

func TestSweepOverflowOnTrigger(t *testing.T) {
	a, _, _, _ := newTestAPU(t)
	writeAll(a, 0, pulseScenario[:6]...)
	a.Write(0, hwdefs.NR10, 0x11) // period 1, increase, shift 1
	a.Write(0, hwdefs.NR13, 0x00)
	a.Write(0, hwdefs.NR14, 0x87) // freq 0x700: 1792 + 896 overflows

	if a.Status()&0x01 != 0 {
		t.Errorf("Status() = %02x, want channel 1 off", a.Status())
	}
}

func TestSweepOverflow(t *testing.T) {
	a, _, _, _ := newTestAPU(t)
	writeAll(a, 0, pulseScenario[:6]...)
	a.Write(0, hwdefs.NR10, 0x11)
	a.Write(0, hwdefs.NR14, 0x85) // freq 0x500: 1280 + 640 = 1920

	// first sweep clock is on step 2
	const sweepTime = 3 * seqPeriod
	if got := a.ReadRegister(sweepTime-1, hwdefs.NR52); got&0x01 == 0 {
		t.Fatalf("NR52 = %02x before sweep, want channel 1 on", got)
	}
	a.ReadRegister(sweepTime, hwdefs.NR52)
	if a.Square1.freq != 1920 {
		t.Errorf("freq = %d after sweep, want 1920", a.Square1.freq)
	}
	// 1920 + 960 overflows.
	if a.Status()&0x01 != 0 {
		t.Errorf("Status() = %02x after sweep overflow, want channel 1 off", a.Status())
	}
}

func TestSweepNegateQuirk(t *testing.T) {
	a, _, _, _ := newTestAPU(t)
	writeAll(a, 0, pulseScenario[:6]...)
	a.Write(0, hwdefs.NR10, 0x19) // negate, shift 1
	a.Write(0, hwdefs.NR14, 0x85)
	if a.Status()&0x01 == 0 {
		t.Fatal("channel 1 should be on")
	}

	a.Write(10, hwdefs.NR10, 0x11)
	if a.Status()&0x01 != 0 {
		t.Errorf("leaving negate mode should disable channel 1")
	}
}

func TestEnvelope(t *testing.T) {
	a, center, _, _ := newTestAPU(t)
	writeAll(a, 0, pulseScenario[:4]...)
	a.Write(0, hwdefs.NR12, 0xF1) // volume 15, decrease, period 1
	a.Write(0, hwdefs.NR14, 0x86)

	const envTime = 8 * seqPeriod // step 7
	a.ReadRegister(envTime-1, hwdefs.NR52)
	if a.Square1.envelope.volume != 15 {
		t.Fatalf("volume = %d before envelope clock, want 15", a.Square1.envelope.volume)
	}
	a.ReadRegister(envTime, hwdefs.NR52)
	if a.Square1.envelope.volume != 14 {
		t.Errorf("volume = %d after envelope clock, want 14", a.Square1.envelope.volume)
	}
	if got, want := center.sum(), a.Square1.out.level*8*ampUnit; got != want {
		t.Errorf("center = %d, want %d", got, want)
	}
	if abs := max(center.sum(), -center.sum()); abs != 14*8*ampUnit {
		t.Errorf("|center| = %d, want %d", abs, 14*8*ampUnit)
	}
}

func TestDACOffDisablesChannel(t *testing.T) {
	a, center, _, _ := newTestAPU(t)
	writeAll(a, 0, pulseScenario...)

	a.Write(100, hwdefs.NR12, 0x00)
	if a.Status()&0x01 != 0 {
		t.Errorf("Status() = %02x, want channel 1 off", a.Status())
	}
	if got := center.sum(); got != 0 {
		t.Errorf("center = %d, want 0", got)
	}

	// DAC on but volume 0 and no trigger: still off.
	a.Write(200, hwdefs.NR12, 0x08)
	if a.Status()&0x01 != 0 {
		t.Errorf("Status() = %02x, want channel 1 off", a.Status())
	}
	a.Write(300, hwdefs.NR14, 0x80)
	if a.Status()&0x01 == 0 {
		t.Errorf("trigger with DAC on should enable channel 1")
	}
}

func TestUltrasonicIsFlat(t *testing.T) {
	a, center, _, _ := newTestAPU(t)
	writeAll(a, 0, pulseScenario[:6]...)
	a.Write(0, hwdefs.NR13, 0xFA)
	a.Write(0, hwdefs.NR14, 0x87) // 2042

	a.EndFrame(hwdefs.FrameClocks)
	if len(center.deltas) != 0 {
		t.Errorf("got %d deltas, want none", len(center.deltas))
	}
	if a.Status()&0x01 == 0 {
		t.Errorf("channel 1 should still be on")
	}
}

func TestWaveChannel(t *testing.T) {
	a, center, _, _ := newTestAPU(t)
	writeAll(a, 0,
		write{hwdefs.NR51, 0xFF},
		write{hwdefs.NR50, 0x77},
	)
	for i := range uint16(hwdefs.WaveRAMSize) {
		a.Write(0, hwdefs.WaveRAM+i, 0xF0)
	}
	if got := a.ReadRegister(0, hwdefs.WaveRAM+3); got != 0xF0 {
		t.Fatalf("wave RAM read = %02x, want f0", got)
	}

	writeAll(a, 0,
		write{hwdefs.NR30, 0x80},
		write{hwdefs.NR32, 0x20}, // 100%
		write{hwdefs.NR33, 0x00},
		write{hwdefs.NR34, 0x87}, // freq 0x700, period 512 clocks
	)
	if a.Status()&0x04 == 0 {
		t.Fatalf("Status() = %02x, want wave on", a.Status())
	}

	// position 1 is the low nibble of byte 0.
	a.ReadRegister(512, hwdefs.NR52)
	if got := a.Wave.out.level; got != -15 {
		t.Errorf("level = %d at position 1, want -15", got)
	}
	a.ReadRegister(1024, hwdefs.NR52)
	if got := a.Wave.out.level; got != 15 {
		t.Errorf("level = %d at position 2, want 15", got)
	}

	// 25%: 2*(15>>2) - (15>>2)
	a.Write(1024, hwdefs.NR32, 0x60)
	if got := a.Wave.out.level; got != 3 {
		t.Errorf("level = %d at 25%%, want 3", got)
	}
	if got, want := center.sum(), int32(3*8*ampUnit); got != want {
		t.Errorf("center = %d, want %d", got, want)
	}

	// mute
	a.Write(1024, hwdefs.NR32, 0x00)
	if got := a.Wave.out.level; got != 0 {
		t.Errorf("level = %d muted, want 0", got)
	}

	a.Write(1100, hwdefs.NR30, 0x00)
	if a.Status()&0x04 != 0 {
		t.Errorf("DAC off should disable wave")
	}
}

func TestNoiseLFSR(t *testing.T) {
	a, _, _, _ := newTestAPU(t)
	writeAll(a, 0,
		write{hwdefs.NR42, 0xF0},
		write{hwdefs.NR43, 0x00}, // divisor 8, shift 0
		write{hwdefs.NR44, 0x80},
	)
	if a.Status()&0x08 == 0 {
		t.Fatalf("Status() = %02x, want noise on", a.Status())
	}

	a.ReadRegister(8, hwdefs.NR52)
	if a.Noise.lfsr != 0x3FFF {
		t.Errorf("lfsr = %04x after one clock, want 3fff", a.Noise.lfsr)
	}

	// 15-bit LFSR has a period of 32767 clocks
	start := a.Noise.lfsr
	a.ReadRegister(8+32767*8, hwdefs.NR52)
	if a.Noise.lfsr != start {
		t.Errorf("lfsr = %04x after 32767 clocks, want %04x", a.Noise.lfsr, start)
	}

	// shifts 14 and 15 stop the clock
	a.Write(8+32767*8, hwdefs.NR43, 0xE0)
	lfsr := a.Noise.lfsr
	a.ReadRegister(8+32767*8+hwdefs.FrameClocks, hwdefs.NR52)
	if a.Noise.lfsr != lfsr {
		t.Errorf("lfsr moved with shift 14")
	}
}

func TestNoiseWidth7(t *testing.T) {
	a, _, _, _ := newTestAPU(t)
	writeAll(a, 0,
		write{hwdefs.NR42, 0xF0},
		write{hwdefs.NR43, 0x08},
		write{hwdefs.NR44, 0x80},
	)

	// Let the register settle into the 7-bit sequence, then check its period.
	a.ReadRegister(200*8, hwdefs.NR52)
	start := a.Noise.lfsr & 0x7F
	a.ReadRegister(200*8+127*8, hwdefs.NR52)
	if got := a.Noise.lfsr & 0x7F; got != start {
		t.Errorf("7-bit lfsr = %02x after 127 clocks, want %02x", got, start)
	}
}

func TestEndFrameRebase(t *testing.T) {
	a, center, _, _ := newTestAPU(t)
	writeAll(a, 0, pulseScenario...)
	a.EndFrame(hwdefs.FrameClocks)

	if a.lastTime != 0 {
		t.Errorf("lastTime = %d, want 0", a.lastTime)
	}
	if want := uint32(9*seqPeriod - hwdefs.FrameClocks); a.seq.next != want {
		t.Errorf("next sequencer step at %d, want %d", a.seq.next, want)
	}
	if a.seq.step != 0 {
		t.Errorf("sequencer step = %d, want 0", a.seq.step)
	}

	// 50% duty changes level every 4 steps, the phase carries over.
	last := center.deltas[len(center.deltas)-1].Time
	center.deltas = nil
	a.EndFrame(hwdefs.FrameClocks)
	if got, want := center.deltas[0].Time, last+4*2048-hwdefs.FrameClocks; got != want {
		t.Errorf("first delta of next frame at %d, want %d", got, want)
	}
}

func TestWriteClampedToLastTime(t *testing.T) {
	a, center, _, _ := newTestAPU(t)
	writeAll(a, 1000, pulseScenario...)
	a.Write(500, hwdefs.NR12, 0x00)

	n := len(center.deltas)
	if got := center.deltas[n-1].Time; got != 1000 {
		t.Errorf("delta at %d, want 1000", got)
	}
}

func TestFarFutureTimeIsClamped(t *testing.T) {
	a, center, _, _ := newTestAPU(t)
	writeAll(a, 0, pulseScenario...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Write(0xFFFFF000, hwdefs.NR12, 0xF0)
		a.ReadRegister(1<<30, hwdefs.NR52)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("far future write did not return")
	}

	if a.lastTime != MaxTime {
		t.Errorf("lastTime = %d, want %d", a.lastTime, MaxTime)
	}
	for _, d := range center.deltas {
		if d.Time > MaxTime {
			t.Fatalf("delta at %d, past %d", d.Time, MaxTime)
		}
	}

	// What's past the frame end carries over.
	a.EndFrame(hwdefs.FrameClocks)
	if want := uint32(MaxTime - hwdefs.FrameClocks); a.lastTime != want {
		t.Errorf("lastTime = %d after EndFrame, want %d", a.lastTime, want)
	}

	a.EndFrame(0xFFFFFFFF)
	if a.lastTime != 0 {
		t.Errorf("lastTime = %d after clamped EndFrame, want 0", a.lastTime)
	}
	if a.seq.next == 0 || a.seq.next > seqPeriod {
		t.Errorf("next sequencer step at %d, want within (0, %d]", a.seq.next, seqPeriod)
	}
}

func TestResetRewritesRegisters(t *testing.T) {
	a, _, _, _ := newTestAPU(t)
	writeAll(a, 0, pulseScenario...)
	writeAll(a, 0,
		write{hwdefs.NR10, 0x17},
		write{hwdefs.NR32, 0x20},
		write{hwdefs.NR43, 0x55},
	)

	a.Reset()
	want := map[uint16]uint8{
		hwdefs.NR10: 0x80,
		hwdefs.NR11: 0x3F,
		hwdefs.NR12: 0x00,
		hwdefs.NR32: 0x9F,
		hwdefs.NR43: 0x00,
		hwdefs.NR50: 0x77,
		hwdefs.NR52: 0xF0,
	}
	for addr, val := range want {
		if got := a.ReadRegister(0, addr); got != val {
			t.Errorf("%s = %02x after reset, want %02x", hwdefs.RegName(addr), got, val)
		}
	}

	// State follows the registers: sweep period and wave level are back to
	// their power-up values.
	if a.Square1.sweepPeriod != 0 || a.Square1.sweepShift != 0 || a.Square1.sweepNegate {
		t.Errorf("sweep not reset: period=%d shift=%d negate=%t",
			a.Square1.sweepPeriod, a.Square1.sweepShift, a.Square1.sweepNegate)
	}
	if a.Wave.shift != waveShift[0] {
		t.Errorf("wave shift = %d after reset, want %d", a.Wave.shift, waveShift[0])
	}
}

func TestResetCancelsAmplitude(t *testing.T) {
	a, center, _, _ := newTestAPU(t)
	writeAll(a, 0, pulseScenario...)
	a.ReadRegister(3000, hwdefs.NR52)
	a.Reset()

	if got := center.sum(); got != 0 {
		t.Errorf("center = %d after reset, want 0", got)
	}
	if a.Status() != 0 {
		t.Errorf("Status() = %02x after reset, want 0", a.Status())
	}
	if got := a.ReadRegister(3000, hwdefs.NR51); got != 0xF3 {
		t.Errorf("NR51 = %02x after reset, want f3", got)
	}
}

func TestChannelString(t *testing.T) {
	if got := Wave.String(); got != "Wave" {
		t.Errorf("Wave.String() = %q", got)
	}
	if got := Channel(7).String(); got != "Channel(7)" {
		t.Errorf("Channel(7).String() = %q", got)
	}
}

// Command libgbapu builds the Game Boy sound synthesizer as a C shared
// library:
//
//	go build -buildmode=c-shared -o libgbapu.so ./cmd/libgbapu
//
// Handles returned by apu_new are opaque, 0 means failure. Calls with an
// unknown handle do nothing; apu_read_samples returns 0.
package main

/*
#include <stddef.h>
#include <stdint.h>
*/
import "C"

import "unsafe"

//export apu_new
func apu_new(sampleRate C.int) C.uintptr_t {
	return C.uintptr_t(newCore(int(sampleRate)))
}

//export apu_delete
func apu_delete(h C.uintptr_t) {
	deleteCore(uintptr(h))
}

//export apu_reset
func apu_reset(h C.uintptr_t) {
	resetCore(uintptr(h))
}

//export apu_write
func apu_write(h C.uintptr_t, time C.uint32_t, addr C.uint16_t, data C.uint8_t) {
	writeCore(uintptr(h), uint32(time), uint16(addr), uint8(data))
}

//export apu_end_frame
func apu_end_frame(h C.uintptr_t, clocks C.uint32_t) {
	endFrame(uintptr(h), uint32(clocks))
}

// apu_read_samples fills out with at most max interleaved stereo samples and
// returns how many were written.
//
//export apu_read_samples
func apu_read_samples(h C.uintptr_t, out *C.int16_t, max C.int) C.int {
	if out == nil || max <= 0 {
		return 0
	}
	buf := unsafe.Slice((*int16)(unsafe.Pointer(out)), int(max))
	return C.int(readSamples(uintptr(h), buf))
}

//export apu_master_enable
func apu_master_enable(h C.uintptr_t, enable C.int) {
	masterEnable(uintptr(h), enable != 0)
}

func main() {}

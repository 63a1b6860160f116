package hwio

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

var (
	typeReg8 = reflect.TypeOf(Reg8{})
	typeMem  = reflect.TypeOf(Mem{})
)

type regInfo struct {
	offset uint16
	regPtr any
}

type tagOpts map[string]string

func parseTag(tag string) tagOpts {
	opts := make(tagOpts)
	for _, opt := range strings.Split(tag, ",") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		k, v, _ := strings.Cut(opt, "=")
		opts[k] = v
	}
	return opts
}

func (o tagOpts) uint(key string, bits int) (uint64, bool, error) {
	s, ok := o[key]
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, true, fmt.Errorf("invalid %s=%q: %w", key, s, err)
	}
	return v, true, nil
}

// callback returns the method named after the option value, or prefix+NAME
// (upper-cased field name) when the option has no value.
func (o tagOpts) callback(key string, obj reflect.Value, prefix, field string) (reflect.Value, bool, error) {
	name, ok := o[key]
	if !ok {
		return reflect.Value{}, false, nil
	}
	if name == "" {
		name = prefix + strings.ToUpper(field)
	}
	m := obj.MethodByName(name)
	if !m.IsValid() {
		return reflect.Value{}, true, fmt.Errorf("missing method %s on %s", name, obj.Type())
	}
	return m, true, nil
}

func assignCb[F any](dst *F, m reflect.Value) error {
	cb, ok := m.Interface().(F)
	if !ok {
		var zero F
		return fmt.Errorf("callback has type %s, want %T", m.Type(), zero)
	}
	*dst = cb
	return nil
}

// InitRegs initializes all Reg8 and Mem fields of the structure pointed to by
// data, following the "hwio" struct tag of each field. Supported options:
//
//	reset=0x12      reset value (Reg8)
//	rwmask=0xF0     writable bits (Reg8, default 0xFF)
//	size=0x100      physical size (Mem)
//	vsize=0x200     mapped size, mirroring the physical size (Mem)
//	readonly        writes are rejected
//	writeonly       reads are rejected (Reg8)
//	rcb[=Method]    read callback, defaults to ReadNAME
//	wcb[=Method]    write callback, defaults to WriteNAME
//	pcb[=Method]    peek callback, defaults to PeekNAME
func InitRegs(data any) error {
	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Pointer || val.Elem().Kind() != reflect.Struct {
		return errors.New("hwio: InitRegs requires a pointer to struct")
	}
	sv := val.Elem()
	st := sv.Type()

	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		tag, ok := f.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		opts := parseTag(tag)

		var err error
		switch f.Type {
		case typeReg8:
			err = initReg8(sv.Field(i).Addr().Interface().(*Reg8), f.Name, opts, val)
		case typeMem:
			err = initMem(sv.Field(i).Addr().Interface().(*Mem), f.Name, opts, val)
		default:
			err = fmt.Errorf("unsupported type %s", f.Type)
		}
		if err != nil {
			return fmt.Errorf("hwio: field %s.%s: %w", st.Name(), f.Name, err)
		}
	}
	return nil
}

func MustInitRegs(data any) {
	if err := InitRegs(data); err != nil {
		panic(err)
	}
}

func initReg8(reg *Reg8, name string, opts tagOpts, obj reflect.Value) error {
	reg.Name = name

	reset, _, err := opts.uint("reset", 64)
	if err != nil {
		return err
	}
	if reset > 0xFF {
		return fmt.Errorf("reset value %#x too big for 8-bit register", reset)
	}
	reg.Reset = uint8(reset)
	reg.Value = uint8(reset)

	rwmask, ok, err := opts.uint("rwmask", 64)
	if err != nil {
		return err
	}
	if !ok {
		rwmask = 0xFF
	}
	if rwmask > 0xFF {
		return fmt.Errorf("rwmask %#x too big for 8-bit register", rwmask)
	}
	reg.RoMask = ^uint8(rwmask)

	if _, ok := opts["readonly"]; ok {
		reg.Flags |= ReadOnlyFlag
	}
	if _, ok := opts["writeonly"]; ok {
		reg.Flags |= WriteOnlyFlag
	}

	if m, ok, err := opts.callback("rcb", obj, "Read", name); err != nil {
		return err
	} else if ok {
		if err := assignCb(&reg.ReadCb, m); err != nil {
			return err
		}
	}
	if m, ok, err := opts.callback("pcb", obj, "Peek", name); err != nil {
		return err
	} else if ok {
		if err := assignCb(&reg.PeekCb, m); err != nil {
			return err
		}
	}
	if m, ok, err := opts.callback("wcb", obj, "Write", name); err != nil {
		return err
	} else if ok {
		if err := assignCb(&reg.WriteCb, m); err != nil {
			return err
		}
	}
	return nil
}

func initMem(mem *Mem, name string, opts tagOpts, obj reflect.Value) error {
	mem.Name = name

	size, ok, err := opts.uint("size", 32)
	if err != nil {
		return err
	}
	if ok && mem.Data == nil {
		mem.Data = make([]byte, size)
	}
	if len(mem.Data) == 0 {
		return errors.New("memory area has no size")
	}

	vsize, ok, err := opts.uint("vsize", 32)
	if err != nil {
		return err
	}
	if !ok {
		vsize = uint64(len(mem.Data))
	}
	if vsize < uint64(len(mem.Data)) {
		return fmt.Errorf("vsize %#x smaller than size %#x", vsize, len(mem.Data))
	}
	mem.VSize = int(vsize)

	if _, ok := opts["readonly"]; ok {
		mem.Flags |= MemFlag8ReadOnly
	}
	if m, ok, err := opts.callback("wcb", obj, "Write", name); err != nil {
		return err
	} else if ok {
		if err := assignCb(&mem.WriteCb, m); err != nil {
			return err
		}
	}
	return nil
}

// bankGetRegs returns the registers of the given bank, along with their
// offset. Fields without an offset option don't belong to any bank.
func bankGetRegs(data any, bankNum int) ([]regInfo, error) {
	val := reflect.ValueOf(data)
	if val.Kind() != reflect.Pointer || val.Elem().Kind() != reflect.Struct {
		return nil, errors.New("hwio: bank must be a pointer to struct")
	}
	sv := val.Elem()
	st := sv.Type()

	var regs []regInfo
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		tag, ok := f.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		opts := parseTag(tag)

		off, ok, err := opts.uint("offset", 16)
		if err != nil {
			return nil, fmt.Errorf("hwio: field %s: %w", f.Name, err)
		}
		if !ok {
			continue
		}
		bank, _, err := opts.uint("bank", 16)
		if err != nil {
			return nil, fmt.Errorf("hwio: field %s: %w", f.Name, err)
		}
		if int(bank) != bankNum {
			continue
		}

		switch f.Type {
		case typeReg8, typeMem:
			regs = append(regs, regInfo{
				offset: uint16(off),
				regPtr: sv.Field(i).Addr().Interface(),
			})
		default:
			return nil, fmt.Errorf("hwio: field %s: unsupported type %s", f.Name, f.Type)
		}
	}
	return regs, nil
}

package gainmap

import (
	"encoding/binary"
	"errors"
	"math"
)

const (
	isoFlagMultiChannel = 1 << 7
	isoFlagUseBaseColor = 1 << 6
	isoFlagCommonDenom  = 1 << 3
	isoFlagBackward     = 1 << 2
)

// fraction is a rational ISO 21496-1 field value.
type fraction struct {
	n int64
	d uint32
}

func (f fraction) value() float32 {
	if f.d == 0 {
		return 0
	}
	return float32(float64(f.n) / float64(f.d))
}

// isoChannel holds the per-channel fractions in wire order.
type isoChannel struct {
	min, max, gamma, baseOffset, altOffset fraction
}

func (c *isoChannel) fields() []*fraction {
	return []*fraction{&c.min, &c.max, &c.gamma, &c.baseOffset, &c.altOffset}
}

type isoMetadata struct {
	baseHeadroom fraction
	altHeadroom  fraction
	channels     [3]isoChannel
	multiChannel bool
	useBaseColor bool
	backward     bool
}

// isoVersionPayload is the primary image ISO block: namespace and version only.
func isoVersionPayload() []byte {
	out := append([]byte(nil), isoPrefix...)
	return append(out, 0, 0, 0, 0)
}

// buildISOPayload encodes meta as a secondary image ISO block with namespace prefix.
func buildISOPayload(meta *Metadata) ([]byte, error) {
	if meta == nil {
		return nil, errors.New("gain map metadata missing")
	}
	iso, err := isoFromMetadata(meta)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), isoPrefix...), iso.encode()...), nil
}

// parseISO decodes a secondary image ISO block with or without namespace prefix.
func parseISO(payload []byte) (*Metadata, error) {
	if len(payload) >= len(isoPrefix) && string(payload[:len(isoPrefix)]) == string(isoPrefix) {
		payload = payload[len(isoPrefix):]
	}
	var iso isoMetadata
	if err := iso.decode(payload); err != nil {
		return nil, err
	}
	return iso.metadata(), nil
}

func (m *isoMetadata) decode(in []byte) error {
	pos := 0
	errShort := errors.New("iso metadata truncated")
	u8 := func() (uint8, error) {
		if pos+1 > len(in) {
			return 0, errShort
		}
		pos++
		return in[pos-1], nil
	}
	u16 := func() (uint16, error) {
		if pos+2 > len(in) {
			return 0, errShort
		}
		pos += 2
		return binary.BigEndian.Uint16(in[pos-2:]), nil
	}
	u32 := func() (uint32, error) {
		if pos+4 > len(in) {
			return 0, errShort
		}
		pos += 4
		return binary.BigEndian.Uint32(in[pos-4:]), nil
	}

	minVersion, err := u16()
	if err != nil {
		return err
	}
	if minVersion != 0 {
		return errors.New("unsupported iso min_version")
	}
	if _, err := u16(); err != nil {
		return err
	}
	flags, err := u8()
	if err != nil {
		return err
	}
	m.multiChannel = flags&isoFlagMultiChannel != 0
	m.useBaseColor = flags&isoFlagUseBaseColor != 0
	m.backward = flags&isoFlagBackward != 0
	common := flags&isoFlagCommonDenom != 0

	var commonDen uint32
	if common {
		if commonDen, err = u32(); err != nil {
			return err
		}
	}
	// Headroom numerators are unsigned, the rest signed.
	read := func(f *fraction, signed bool) error {
		n, err := u32()
		if err != nil {
			return err
		}
		if signed {
			f.n = int64(int32(n))
		} else {
			f.n = int64(n)
		}
		if common {
			f.d = commonDen
			return nil
		}
		f.d, err = u32()
		return err
	}

	if err := read(&m.baseHeadroom, false); err != nil {
		return err
	}
	if err := read(&m.altHeadroom, false); err != nil {
		return err
	}

	count := 1
	if m.multiChannel {
		count = 3
	}
	for c := 0; c < count; c++ {
		for i, f := range m.channels[c].fields() {
			if err := read(f, i != 2); err != nil {
				return err
			}
			if f.d == 0 {
				return errors.New("iso metadata zero denominator")
			}
		}
	}
	for c := count; c < 3; c++ {
		m.channels[c] = m.channels[0]
	}
	return nil
}

func (m *isoMetadata) encode() []byte {
	count := 1
	flags := uint8(0)
	if m.multiChannel {
		count = 3
		flags |= isoFlagMultiChannel
	}
	if m.useBaseColor {
		flags |= isoFlagUseBaseColor
	}
	if m.backward {
		flags |= isoFlagBackward
	}

	all := []*fraction{&m.baseHeadroom, &m.altHeadroom}
	for c := 0; c < count; c++ {
		all = append(all, m.channels[c].fields()...)
	}
	common := true
	for _, f := range all {
		if f.d != all[0].d {
			common = false
			break
		}
	}
	if common {
		flags |= isoFlagCommonDenom
	}

	out := make([]byte, 0, 128)
	out = binary.BigEndian.AppendUint16(out, 0)
	out = binary.BigEndian.AppendUint16(out, 0)
	out = append(out, flags)
	if common {
		out = binary.BigEndian.AppendUint32(out, all[0].d)
	}
	for _, f := range all {
		out = binary.BigEndian.AppendUint32(out, uint32(f.n))
		if !common {
			out = binary.BigEndian.AppendUint32(out, f.d)
		}
	}
	return out
}

func (m *isoMetadata) metadata() *Metadata {
	meta := &Metadata{Version: jpegrVersion, UseBaseCG: m.useBaseColor}
	for i, c := range m.channels {
		meta.MinContentBoost[i] = exp2f(c.min.value())
		meta.MaxContentBoost[i] = exp2f(c.max.value())
		meta.Gamma[i] = c.gamma.value()
		meta.OffsetSDR[i] = c.baseOffset.value()
		meta.OffsetHDR[i] = c.altOffset.value()
	}
	meta.HDRCapacityMin = exp2f(m.baseHeadroom.value())
	meta.HDRCapacityMax = exp2f(m.altHeadroom.value())
	return meta
}

func isoFromMetadata(meta *Metadata) (*isoMetadata, error) {
	iso := &isoMetadata{
		useBaseColor: meta.UseBaseCG,
		multiChannel: !meta.singleChannel(),
	}
	count := 1
	if iso.multiChannel {
		count = 3
	}
	for i := 0; i < count; i++ {
		c := &iso.channels[i]
		for _, v := range []struct {
			dst      *fraction
			v        float32
			unsigned bool
		}{
			{&c.min, log2f(meta.MinContentBoost[i]), false},
			{&c.max, log2f(meta.MaxContentBoost[i]), false},
			{&c.gamma, meta.Gamma[i], true},
			{&c.baseOffset, meta.OffsetSDR[i], false},
			{&c.altOffset, meta.OffsetHDR[i], false},
		} {
			f, err := toFraction(v.v, v.unsigned)
			if err != nil {
				return nil, err
			}
			*v.dst = f
		}
	}
	for i := count; i < 3; i++ {
		iso.channels[i] = iso.channels[0]
	}

	var err error
	if iso.baseHeadroom, err = toFraction(log2f(meta.HDRCapacityMin), true); err != nil {
		return nil, err
	}
	if iso.altHeadroom, err = toFraction(log2f(meta.HDRCapacityMax), true); err != nil {
		return nil, err
	}
	return iso, nil
}

func (m *Metadata) singleChannel() bool {
	for i := 1; i < 3; i++ {
		if m.MinContentBoost[0] != m.MinContentBoost[i] ||
			m.MaxContentBoost[0] != m.MaxContentBoost[i] ||
			m.Gamma[0] != m.Gamma[i] ||
			m.OffsetSDR[0] != m.OffsetSDR[i] ||
			m.OffsetHDR[0] != m.OffsetHDR[i] {
			return false
		}
	}
	return true
}

func toFraction(v float32, unsigned bool) (fraction, error) {
	maxNum := uint32(math.MaxInt32)
	if unsigned {
		if v < 0 {
			return fraction{}, errors.New("negative value for unsigned fraction")
		}
		maxNum = math.MaxUint32
	}
	num, den, ok := continuedFraction(math.Abs(float64(v)), maxNum)
	if !ok {
		return fraction{}, errors.New("value out of fraction range")
	}
	f := fraction{n: int64(num), d: den}
	if v < 0 {
		f.n = -f.n
	}
	return f, nil
}

// continuedFraction approximates v by num/den with num bounded by maxNum.
func continuedFraction(v float64, maxNum uint32) (uint32, uint32, bool) {
	if math.IsNaN(v) || v < 0 || v > float64(maxNum) {
		return 0, 0, false
	}
	maxD := float64(math.MaxUint32)
	if v > 1 {
		maxD = math.Floor(float64(maxNum) / v)
	}

	den, prevD := uint32(1), uint32(0)
	rem := v - math.Floor(v)
	for range 39 {
		numF := float64(den) * v
		if numF > float64(maxNum) {
			return 0, 0, false
		}
		num := uint32(math.Round(numF))
		if numF == float64(num) || rem == 0 {
			return num, den, true
		}
		rem = 1 / rem
		newD := float64(prevD) + math.Floor(rem)*float64(den)
		if newD > maxD {
			return num, den, true
		}
		prevD, den = den, uint32(newD)
		rem -= math.Floor(rem)
	}
	return uint32(math.Round(float64(den) * v)), den, true
}

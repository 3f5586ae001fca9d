package wire

import (
	"encoding/binary"
)

// binWriter accumulates a compact binary encoding: fixed-width integers
// little-endian, variable-length vectors length-prefixed with a single byte
// (every vector in this protocol is bounded by MaxScenarioSteps or a packet
// payload, so a byte prefix is always sufficient).
type binWriter struct {
	buf []byte
}

func (w *binWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *binWriter) i8(v int8)    { w.buf = append(w.buf, byte(v)) }
func (w *binWriter) bytes(v []byte) { w.buf = append(w.buf, v...) }

func (w *binWriter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *binWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *binWriter) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

// vec writes a length-prefixed byte vector (prefix length ≤ 255).
func (w *binWriter) vec(v []byte) {
	w.u8(uint8(len(v)))
	w.bytes(v)
}

type binReader struct {
	buf []byte
	pos int
}

func (r *binReader) need(n int) bool { return r.pos+n <= len(r.buf) }

func (r *binReader) u8() (uint8, error) {
	if !r.need(1) {
		return 0, ErrMalformed
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *binReader) i8() (int8, error) {
	v, err := r.u8()
	return int8(v), err
}

func (r *binReader) u16() (uint16, error) {
	if !r.need(2) {
		return 0, ErrMalformed
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *binReader) u32() (uint32, error) {
	if !r.need(4) {
		return 0, ErrMalformed
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *binReader) bool() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

func (r *binReader) fixed(n int) ([]byte, error) {
	if !r.need(n) {
		return nil, ErrMalformed
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *binReader) vec() ([]byte, error) {
	n, err := r.u8()
	if err != nil {
		return nil, err
	}
	return r.fixed(int(n))
}

func (r *binReader) done() bool { return r.pos == len(r.buf) }

func encodeHidReport(w *binWriter, h HidReport) {
	w.u8(h.hidTag())
	switch v := h.(type) {
	case Mouse:
		w.u8(v.Buttons)
		w.i8(v.X)
		w.i8(v.Y)
		w.i8(v.Wheel)
		w.i8(v.Pan)
	case Keyboard:
		w.u8(v.Modifier)
		for _, kc := range v.Keycodes {
			w.u8(kc)
		}
	}
}

func decodeHidReport(r *binReader) (HidReport, error) {
	tag, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagHidMouse:
		buttons, err := r.u8()
		if err != nil {
			return nil, err
		}
		x, err := r.i8()
		if err != nil {
			return nil, err
		}
		y, err := r.i8()
		if err != nil {
			return nil, err
		}
		wheel, err := r.i8()
		if err != nil {
			return nil, err
		}
		pan, err := r.i8()
		if err != nil {
			return nil, err
		}
		return Mouse{Buttons: buttons, X: x, Y: y, Wheel: wheel, Pan: pan}, nil
	case tagHidKeyboard:
		mod, err := r.u8()
		if err != nil {
			return nil, err
		}
		var kc [6]byte
		for i := range kc {
			b, err := r.u8()
			if err != nil {
				return nil, err
			}
			kc[i] = b
		}
		return Keyboard{Modifier: mod, Keycodes: kc}, nil
	default:
		return nil, ErrUnknownTag
	}
}

func encodeHidRequest(w *binWriter, h HidRequest) {
	w.u8(h.ID)
	encodeHidReport(w, h.Report)
}

func decodeHidRequest(r *binReader) (HidRequest, error) {
	id, err := r.u8()
	if err != nil {
		return HidRequest{}, err
	}
	rep, err := decodeHidReport(r)
	if err != nil {
		return HidRequest{}, err
	}
	return HidRequest{ID: id, Report: rep}, nil
}

func encodeEvent(w *binWriter, e Event) {
	w.u8(e.eventTag())
	switch v := e.(type) {
	case EventLightLevel:
		w.u32(uint32(v))
	case EventHidReport:
		w.u8(uint8(v))
	}
}

func decodeEvent(r *binReader) (Event, error) {
	tag, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagEventLightLevel:
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		return EventLightLevel(v), nil
	case tagEventHidReport:
		v, err := r.u8()
		if err != nil {
			return nil, err
		}
		return EventHidReport(v), nil
	default:
		return nil, ErrUnknownTag
	}
}

func encodeStep(w *binWriter, s Step) {
	w.u8(s.stepTag())
	switch v := s.(type) {
	case StepHidRequest:
		encodeHidRequest(w, v.Request)
	case StepWait:
		w.u16(v.Ms)
	}
}

func decodeStep(r *binReader) (Step, error) {
	tag, err := r.u8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagStepHidRequest:
		req, err := decodeHidRequest(r)
		if err != nil {
			return nil, err
		}
		return StepHidRequest{Request: req}, nil
	case tagStepWait:
		ms, err := r.u16()
		if err != nil {
			return nil, err
		}
		return StepWait{Ms: ms}, nil
	default:
		return nil, ErrUnknownTag
	}
}

func encodeDeviceScenario(w *binWriter, s DeviceScenario) {
	if s.StartRecordingAtIdx != nil {
		w.bool(true)
		w.u8(*s.StartRecordingAtIdx)
	} else {
		w.bool(false)
	}
	w.u8(uint8(len(s.Steps)))
	for _, step := range s.Steps {
		encodeStep(w, step)
	}
}

func decodeDeviceScenario(r *binReader) (DeviceScenario, error) {
	has, err := r.bool()
	if err != nil {
		return DeviceScenario{}, err
	}
	var idx *uint8
	if has {
		v, err := r.u8()
		if err != nil {
			return DeviceScenario{}, err
		}
		idx = &v
	}
	n, err := r.u8()
	if err != nil {
		return DeviceScenario{}, err
	}
	if n > MaxScenarioSteps {
		return DeviceScenario{}, ErrMalformed
	}
	steps := make([]Step, 0, n)
	for i := 0; i < int(n); i++ {
		step, err := decodeStep(r)
		if err != nil {
			return DeviceScenario{}, err
		}
		steps = append(steps, step)
	}
	return DeviceScenario{StartRecordingAtIdx: idx, Steps: steps}, nil
}

// EncodeEnvelope serializes a host-to-device request (step 1 of spec.md §4.1,
// before CRC and byte-stuffing).
func EncodeEnvelope(e Envelope) []byte {
	w := &binWriter{}
	w.u32(e.RequestID)
	w.u8(e.Request.reqTag())
	switch v := e.Request.(type) {
	case GetStatus, ResetToFirmwareUpdate:
		// no payload
	case StreamLightLevel:
		w.u16(v.DurationMs)
	case SendHidReport:
		encodeHidRequest(w, v.Report)
	case RunScenario:
		encodeDeviceScenario(w, v.Scenario)
	}
	return w.buf
}

// DecodeEnvelope parses the serialized body produced by EncodeEnvelope.
func DecodeEnvelope(body []byte) (Envelope, error) {
	r := &binReader{buf: body}
	id, err := r.u32()
	if err != nil {
		return Envelope{}, err
	}
	tag, err := r.u8()
	if err != nil {
		return Envelope{}, err
	}
	var msg Message
	switch tag {
	case tagGetStatus:
		msg = GetStatus{}
	case tagResetToFirmwareUpdate:
		msg = ResetToFirmwareUpdate{}
	case tagStreamLightLevel:
		ms, err := r.u16()
		if err != nil {
			return Envelope{}, err
		}
		msg = StreamLightLevel{DurationMs: ms}
	case tagSendHidReport:
		req, err := decodeHidRequest(r)
		if err != nil {
			return Envelope{}, err
		}
		msg = SendHidReport{Report: req}
	case tagRunScenario:
		sc, err := decodeDeviceScenario(r)
		if err != nil {
			return Envelope{}, err
		}
		msg = RunScenario{Scenario: sc}
	default:
		return Envelope{}, ErrUnknownTag
	}
	if !r.done() {
		return Envelope{}, ErrMalformed
	}
	return Envelope{RequestID: id, Request: msg}, nil
}

// EncodeReply serializes a device-to-host reply.
func EncodeReply(rep Reply) []byte {
	w := &binWriter{}
	w.u32(rep.RequestID)
	w.bool(rep.Failed)
	if rep.Failed || rep.Payload == nil {
		w.bool(false) // no payload
		return w.buf
	}
	w.bool(true)
	w.u8(rep.Payload.respTag())
	switch v := rep.Payload.(type) {
	case Status:
		w.u8(v.Hardware)
		w.bytes(v.FirmwareHash[:])
		w.bool(v.FirmwareDirty)
		w.u32(v.MaxLightLevel)
		w.bytes(v.SerialNumber[:])
	case CurrentLightLevel:
		w.u32(v.Level)
	case BufferedMoment:
		w.u32(v.Microsecond)
		encodeEvent(w, v.Event)
		w.u16(v.Idx)
		w.u16(v.Total)
	case PanicChunk:
		w.vec(v.Data)
	}
	return w.buf
}

// DecodeReply parses the serialized body produced by EncodeReply.
func DecodeReply(body []byte) (Reply, error) {
	r := &binReader{buf: body}
	id, err := r.u32()
	if err != nil {
		return Reply{}, err
	}
	failed, err := r.bool()
	if err != nil {
		return Reply{}, err
	}
	hasPayload, err := r.bool()
	if err != nil {
		return Reply{}, err
	}
	if !hasPayload {
		if !r.done() {
			return Reply{}, ErrMalformed
		}
		return Reply{RequestID: id, Failed: failed}, nil
	}
	tag, err := r.u8()
	if err != nil {
		return Reply{}, err
	}
	var payload DeviceMessage
	switch tag {
	case tagStatus:
		hw, err := r.u8()
		if err != nil {
			return Reply{}, err
		}
		hash, err := r.fixed(5)
		if err != nil {
			return Reply{}, err
		}
		dirty, err := r.bool()
		if err != nil {
			return Reply{}, err
		}
		maxLight, err := r.u32()
		if err != nil {
			return Reply{}, err
		}
		serial, err := r.fixed(8)
		if err != nil {
			return Reply{}, err
		}
		var st Status
		st.Hardware = hw
		copy(st.FirmwareHash[:], hash)
		st.FirmwareDirty = dirty
		st.MaxLightLevel = maxLight
		copy(st.SerialNumber[:], serial)
		payload = st
	case tagCurrentLightLevel:
		v, err := r.u32()
		if err != nil {
			return Reply{}, err
		}
		payload = CurrentLightLevel{Level: v}
	case tagBufferedMoment:
		us, err := r.u32()
		if err != nil {
			return Reply{}, err
		}
		ev, err := decodeEvent(r)
		if err != nil {
			return Reply{}, err
		}
		idx, err := r.u16()
		if err != nil {
			return Reply{}, err
		}
		total, err := r.u16()
		if err != nil {
			return Reply{}, err
		}
		payload = BufferedMoment{Microsecond: us, Event: ev, Idx: idx, Total: total}
	case tagPanicChunk:
		data, err := r.vec()
		if err != nil {
			return Reply{}, err
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		payload = PanicChunk{Data: cp}
	default:
		return Reply{}, ErrUnknownTag
	}
	if !r.done() {
		return Reply{}, ErrMalformed
	}
	return Reply{RequestID: id, Failed: failed, Payload: payload}, nil
}

// Frame appends a CRC-16/KERMIT and COBS-stuffs the result, ready to write to
// the bulk endpoint with a trailing zero terminator.
func Frame(body []byte) []byte {
	crc := crcKermit(body)
	withCRC := make([]byte, len(body)+2)
	copy(withCRC, body)
	binary.LittleEndian.PutUint16(withCRC[len(body):], crc)
	framed := stuff(withCRC)
	return append(framed, 0)
}

// Unframe reverses Frame: it unstuffs src (without the trailing zero) and
// verifies the CRC, returning the original body.
func Unframe(src []byte) ([]byte, error) {
	plain, err := unstuff(src)
	if err != nil {
		return nil, err
	}
	if len(plain) < 2 {
		return nil, ErrShortFrame
	}
	body := plain[:len(plain)-2]
	want := binary.LittleEndian.Uint16(plain[len(plain)-2:])
	if crcKermit(body) != want {
		return nil, ErrBadCRC
	}
	return body, nil
}

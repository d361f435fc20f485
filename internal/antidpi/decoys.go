package antidpi

import (
	"crypto/rand"
	"encoding/binary"
)

func randRead(b []byte) (int, error) { return rand.Read(b) }

// FakeTLSHello returns a wire-plausible decoy TLS 1.2 ClientHello record.
// It never completes a real handshake — it only presents plausible bytes to
// a DPI middlebox. No code in this module sends it: the Detection Analyzer
// does not call it and there is no cover-traffic generator.
func (t *Transformer) FakeTLSHello(sni string) []byte {
	var random [32]byte
	_, _ = randRead(random[:])

	var hs []byte
	hs = append(hs, 0x03, 0x03) // client_version TLS1.2
	hs = append(hs, random[:]...)
	hs = append(hs, 0x00) // session id length 0
	// cipher suites: one placeholder suite
	hs = append(hs, 0x00, 0x02, 0x13, 0x01)
	// compression methods: null
	hs = append(hs, 0x01, 0x00)

	var ext []byte
	if sni != "" {
		name := []byte(sni)
		var sniEntry []byte
		sniEntry = append(sniEntry, 0x00) // name type: host_name
		sniEntry = append(sniEntry, be16(uint16(len(name)))...)
		sniEntry = append(sniEntry, name...)

		var sniList []byte
		sniList = append(sniList, be16(uint16(len(sniEntry)))...)
		sniList = append(sniList, sniEntry...)

		ext = append(ext, be16(0x0000)...) // extension type: server_name
		ext = append(ext, be16(uint16(len(sniList)))...)
		ext = append(ext, sniList...)
	}
	hs = append(hs, be16(uint16(len(ext)))...)
	hs = append(hs, ext...)

	var handshake []byte
	handshake = append(handshake, 0x01) // ClientHello
	handshake = append(handshake, be24(uint32(len(hs)))...)
	handshake = append(handshake, hs...)

	var record []byte
	record = append(record, 0x16, 0x03, 0x01) // handshake, TLS1.0 record version
	record = append(record, be16(uint16(len(handshake)))...)
	record = append(record, handshake...)
	return record
}

// FakeQUICInitial returns a wire-plausible decoy QUIC Initial packet header
// (long header form, version 1 Initial shape) without a real connection.
func (t *Transformer) FakeQUICInitial() []byte {
	var dcid, scid [8]byte
	_, _ = randRead(dcid[:])
	_, _ = randRead(scid[:])

	pkt := []byte{0xC3} // long header, fixed bit, type=Initial
	pkt = append(pkt, 0x00, 0x00, 0x00, 0x01) // version 1
	pkt = append(pkt, byte(len(dcid)))
	pkt = append(pkt, dcid[:]...)
	pkt = append(pkt, byte(len(scid)))
	pkt = append(pkt, scid[:]...)
	pkt = append(pkt, 0x00) // token length: 0
	payload := t.fillerBytes(32 + t.randIntn(64))
	pkt = append(pkt, 0x40|byte(len(payload)>>8), byte(len(payload))) // 2-byte varint length
	pkt = append(pkt, payload...)
	return pkt
}

// FakeSTUNBinding returns a wire-plausible decoy STUN Binding Request.
func (t *Transformer) FakeSTUNBinding() []byte {
	const magicCookie = 0x2112A442
	var txID [12]byte
	_, _ = randRead(txID[:])

	pkt := make([]byte, 0, 20)
	pkt = append(pkt, be16(0x0001)...) // message type: Binding Request
	pkt = append(pkt, be16(0x0000)...) // message length: 0 (no attributes)
	var cookie [4]byte
	binary.BigEndian.PutUint32(cookie[:], magicCookie)
	pkt = append(pkt, cookie[:]...)
	pkt = append(pkt, txID[:]...)
	return pkt
}

func be16(v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return b[:]
}

func be24(v uint32) []byte {
	return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
}

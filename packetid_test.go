package mqttgo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPacketIDAllocatorNeverZero(t *testing.T) {
	var a packetIDAllocator
	never := func(uint16) bool { return false }
	for i := 0; i < 3; i++ {
		id := a.reserve(never)
		assert.NotZero(t, id)
	}
}

func TestPacketIDAllocatorSkipsInUse(t *testing.T) {
	var a packetIDAllocator
	inUse := map[uint16]bool{1: true, 2: true}
	id := a.reserve(func(id uint16) bool { return inUse[id] })
	assert.Equal(t, uint16(3), id)
}

func TestPacketIDAllocatorWrapsAround(t *testing.T) {
	a := packetIDAllocator{next: maxPacketID - 1}
	never := func(uint16) bool { return false }

	id := a.reserve(never) // maxPacketID
	assert.Equal(t, uint16(maxPacketID), id)

	id = a.reserve(never) // wraps past 0 to 1
	assert.Equal(t, uint16(1), id)
}

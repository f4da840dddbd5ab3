package renderer

// DefaultAtlasCapacity is the number of glyph slots before the atlas resets.
const DefaultAtlasCapacity = 4096

// GlyphKey identifies a rasterized glyph. Only attributes that change the
// glyph image are part of the key.
type GlyphKey struct {
	Rune  rune
	Flags GlyphFlags
}

// Atlas assigns slots to glyphs. When every slot is taken the atlas is
// reset and its epoch advances; instances derived under an older epoch
// reference stale slots and must be rebuilt.
type Atlas struct {
	slots    map[GlyphKey]uint32
	keys     []GlyphKey
	capacity int
	epoch    uint64
}

// NewAtlas creates an atlas with the given slot capacity.
func NewAtlas(capacity int) *Atlas {
	if capacity <= 0 {
		capacity = DefaultAtlasCapacity
	}
	return &Atlas{
		slots:    make(map[GlyphKey]uint32, capacity),
		keys:     make([]GlyphKey, 0, capacity),
		capacity: capacity,
	}
}

// Slot returns the slot for key, allocating one if needed.
func (a *Atlas) Slot(key GlyphKey) uint32 {
	if slot, ok := a.slots[key]; ok {
		return slot
	}
	if len(a.keys) >= a.capacity {
		a.Reset()
	}
	slot := uint32(len(a.keys))
	a.keys = append(a.keys, key)
	a.slots[key] = slot
	return slot
}

// Key returns the glyph stored in slot.
func (a *Atlas) Key(slot uint32) (GlyphKey, bool) {
	if int(slot) >= len(a.keys) {
		return GlyphKey{}, false
	}
	return a.keys[slot], true
}

// Reset drops every slot and advances the epoch.
func (a *Atlas) Reset() {
	clear(a.slots)
	a.keys = a.keys[:0]
	a.epoch++
}

// Len returns the number of allocated slots.
func (a *Atlas) Len() int { return len(a.keys) }

// Capacity returns the slot capacity.
func (a *Atlas) Capacity() int { return a.capacity }

// Epoch returns the number of resets so far.
func (a *Atlas) Epoch() uint64 { return a.epoch }

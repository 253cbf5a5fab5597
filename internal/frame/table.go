package frame

// NoSlot marks a swapchain image that no frame slot has used since the last rebuild.
const NoSlot = -1

// ImageTable maps every swapchain image to the frame slot whose fence guards it.
// Fences are indexed by slot, so the slot stands in for the fence itself.
type ImageTable struct {
	owners []int
}

// NewImageTable returns a table for count images with every entry set to NoSlot.
func NewImageTable(count int) *ImageTable {
	t := &ImageTable{}
	t.Reset(count)
	return t
}

// Len returns the number of swapchain images tracked.
func (t *ImageTable) Len() int {
	return len(t.owners)
}

// Owner returns the slot that last used image, if any.
func (t *ImageTable) Owner(image uint32) (int, bool) {
	slot := t.owners[image]
	return slot, slot != NoSlot
}

// Assign records slot as the current user of image.
func (t *ImageTable) Assign(image uint32, slot int) {
	t.owners[image] = slot
}

// Reset resizes the table to count images and clears every entry.
func (t *ImageTable) Reset(count int) {
	if cap(t.owners) >= count {
		t.owners = t.owners[:count]
	} else {
		t.owners = make([]int, count)
	}
	for i := range t.owners {
		t.owners[i] = NoSlot
	}
}

// Snapshot returns a copy of the table contents.
func (t *ImageTable) Snapshot() []int {
	out := make([]int, len(t.owners))
	copy(out, t.owners)
	return out
}

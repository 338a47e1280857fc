// Package grid lays a linear cell window out in rows for display.
package grid

// GetGridCoords returns the column and row of index in a grid cols wide.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// Window returns the half-open range of the size-aligned page holding
// pointer, shifted back so it never runs past total.
func Window(pointer, size, total int) (start, end int) {
	if size <= 0 || total <= 0 {
		return 0, 0
	}
	if size > total {
		size = total
	}
	start = (pointer / size) * size
	end = start + size
	if end > total {
		end = total
		start = end - size
	}
	return start, end
}

package mask

// Components returns the 4-connected components of pixels equal to value.
// Each component is a list of row-major pixel indices.
func Components(m *Mask, value bool) [][]int {
	visited := make([]bool, len(m.Pix))
	var comps [][]int

	for i, v := range m.Pix {
		if v != value || visited[i] {
			continue
		}
		comps = append(comps, floodFill(m, visited, i, value))
	}
	return comps
}

// floodFill collects the component containing start.
func floodFill(m *Mask, visited []bool, start int, value bool) []int {
	comp := make([]int, 0, 64)
	stack := []int{start}
	visited[start] = true

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		comp = append(comp, idx)

		x, y := idx%m.Width, idx/m.Width
		neighbors := [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}}
		for _, n := range neighbors {
			nx, ny := n[0], n[1]
			if nx < 0 || ny < 0 || nx >= m.Width || ny >= m.Height {
				continue
			}
			ni := ny*m.Width + nx
			if visited[ni] || m.Pix[ni] != value {
				continue
			}
			visited[ni] = true
			stack = append(stack, ni)
		}
	}
	return comp
}

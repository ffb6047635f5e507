package core

import "fmt"

type visitState uint8

const (
	unvisited visitState = iota
	visiting
	visited
)

// evaluationOrder sorts the derived measures so that every derived operand
// comes before the measures computed from it. edges maps each derived key to
// its operand keys; operands that are not themselves keys of edges are raw
// measures and impose no ordering. Roots are taken in the order of keys, so
// the result is deterministic for a given declaration order.
func evaluationOrder(keys []string, edges map[string][]string) ([]string, error) {
	state := make(map[string]visitState, len(keys))
	order := make([]string, 0, len(keys))

	type frame struct {
		key  string
		next int
	}

	for _, root := range keys {
		if state[root] != unvisited {
			continue
		}
		state[root] = visiting
		stack := []frame{{key: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := edges[top.key]
			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++
				if _, derived := edges[dep]; !derived {
					continue
				}
				switch state[dep] {
				case visiting:
					return nil, &SchemaError{
						Kind:    CyclicRelation,
						Measure: top.key,
						Detail:  fmt.Sprintf("%s -> %s closes a cycle", top.key, dep),
					}
				case unvisited:
					state[dep] = visiting
					stack = append(stack, frame{key: dep})
				}
				continue
			}
			state[top.key] = visited
			order = append(order, top.key)
			stack = stack[:len(stack)-1]
		}
	}
	return order, nil
}

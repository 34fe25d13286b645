package autograd

// Backward sets root.Grad to 1 and propagates gradients to every node
// reachable from root. Each node is visited once, after all of its consumers,
// so contributions from shared operands are summed. Existing grads are not
// cleared first; callers zero parameter leaves between steps.
func Backward(root *Value) {
	topo := TopoSort(root)
	root.Grad = 1
	for i := len(topo) - 1; i >= 0; i-- {
		v := topo[i]
		for j, ch := range v.children {
			ch.Grad += v.localGrads[j] * v.Grad
		}
	}
}

// TopoSort returns the nodes reachable from root in depth-first post-order:
// every node appears after all of its operands.
func TopoSort(root *Value) []*Value {
	var topo []*Value
	visited := map[*Value]bool{}

	type frame struct {
		v    *Value
		next int
	}
	stack := []frame{{v: root}}
	visited[root] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.v.children) {
			ch := top.v.children[top.next]
			top.next++
			if !visited[ch] {
				visited[ch] = true
				stack = append(stack, frame{v: ch})
			}
			continue
		}
		topo = append(topo, top.v)
		stack = stack[:len(stack)-1]
	}
	return topo
}

// ZeroGrad resets the gradient of every value in params.
func ZeroGrad(params []*Value) {
	for _, p := range params {
		p.Grad = 0
	}
}

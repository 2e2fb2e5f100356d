package buffercmp

import (
	"github.com/gomlx/gopjrt/pjrt"
	"k8s.io/klog/v2"
)

// CompareEqual runs the comparison kernel on the device over the two buffers
// and returns whether they compare equal under the comparator's rules.
//
// Both buffers must have the comparator's element type and element count; a
// violation returns a *PreconditionError before any device work. Compile or
// execution failures return an *ExecError. Neither is ever reported as a false
// verdict.
//
// The executable is compiled on first use per client and cached; the buffers
// are not donated and stay valid.
func (c *Comparator) CompareEqual(client *pjrt.Client, lhs, rhs *pjrt.Buffer) (bool, error) {
	if client == nil {
		return false, preconditionErrorf("CompareEqual requires a non-nil client")
	}
	if err := c.checkBuffer("lhs", lhs); err != nil {
		return false, err
	}
	if err := c.checkBuffer("rhs", rhs); err != nil {
		return false, err
	}

	exec, err := c.executableFor(client)
	if err != nil {
		return false, err
	}
	outputs, err := exec.Execute(lhs, rhs).DonateNone().Done()
	if err != nil {
		return false, execError(err, "failed to execute the comparison kernel for shape %s", c.shape)
	}
	defer func() {
		for _, output := range outputs {
			if err := output.Destroy(); err != nil {
				klog.Warningf("buffercmp: failed to destroy output buffer: %+v", err)
			}
		}
	}()
	if len(outputs) != 1 {
		return false, execError(nil, "comparison kernel returned %d outputs, expected 1", len(outputs))
	}
	flat, _, err := outputs[0].ToFlatDataAndDimensions()
	if err != nil {
		return false, execError(err, "failed to transfer the mismatch count to host")
	}
	counts, ok := flat.([]int32)
	if !ok || len(counts) != 1 {
		return false, execError(nil, "comparison kernel returned an unexpected output (%T of len %d)", flat, len(counts))
	}
	mismatches := counts[0]
	if mismatches == 0 {
		return true, nil
	}

	klog.V(1).Infof("buffercmp: %d of %d elements mismatched for shape %s", mismatches, c.shape.Size(), c.shape)
	if klog.V(2).Enabled() {
		c.logHostMismatches(lhs, rhs)
	}
	return false, nil
}

// checkBuffer validates a buffer's dtype and element count against the comparator's shape.
func (c *Comparator) checkBuffer(name string, buffer *pjrt.Buffer) error {
	if buffer == nil {
		return preconditionErrorf("CompareEqual given a nil %s buffer", name)
	}
	dtype, err := buffer.DType()
	if err != nil {
		return execError(err, "failed to query the dtype of the %s buffer", name)
	}
	if dtype != c.shape.DType {
		return preconditionErrorf("%s buffer has dtype %s, comparator was built for %s", name, dtype, c.shape)
	}
	dims, err := buffer.Dimensions()
	if err != nil {
		return execError(err, "failed to query the dimensions of the %s buffer", name)
	}
	count := 1
	for _, dim := range dims {
		count *= dim
	}
	if count != c.shape.Size() {
		return preconditionErrorf("%s buffer has %d elements (dimensions %v), comparator was built for %d (%s)",
			name, count, dims, c.shape.Size(), c.shape)
	}
	return nil
}

// executableFor compiles the kernel for the client, reusing a cached executable
// when available.
func (c *Comparator) executableFor(client *pjrt.Client) (*pjrt.LoadedExecutable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if exec, found := c.execs[client]; found {
		return exec, nil
	}
	exec, err := client.Compile().WithStableHLO(c.program).Done()
	if err != nil {
		return nil, execError(err, "failed to compile the comparison kernel for shape %s", c.shape)
	}
	c.execs[client] = exec
	return exec, nil
}

// logHostMismatches downloads both buffers and logs the first mismatching
// elements, re-evaluating the comparison on host.
func (c *Comparator) logHostMismatches(lhs, rhs *pjrt.Buffer) {
	lhsRaw := make([]byte, c.shape.Memory())
	rhsRaw := make([]byte, c.shape.Memory())
	if err := lhs.ToHost(lhsRaw); err != nil {
		klog.Warningf("buffercmp: failed to download lhs buffer for mismatch logging: %+v", err)
		return
	}
	if err := rhs.ToHost(rhsRaw); err != nil {
		klog.Warningf("buffercmp: failed to download rhs buffer for mismatch logging: %+v", err)
		return
	}
	_, mismatches, err := c.CompareHost(lhsRaw, rhsRaw)
	if err != nil {
		klog.Warningf("buffercmp: host re-verification failed: %+v", err)
		return
	}
	const maxLogged = 8
	for i, m := range mismatches {
		if i >= maxLogged {
			klog.V(2).Infof("buffercmp: ... and %d more mismatches", len(mismatches)-maxLogged)
			break
		}
		klog.V(2).Infof("buffercmp: mismatch at %s: %v vs %v", m, m.Lhs, m.Rhs)
	}
}

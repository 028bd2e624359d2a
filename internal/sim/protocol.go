package sim

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// Control operations understood by the simulator side.
const (
	OpShutdown                     = "shutdown"
	OpSetSimulationTimestep        = "set_simulation_timestep"
	OpSetControlLoopEnabled        = "set_control_loop_enabled"
	OpSetMotorLockedAtZeroVelocity = "set_motor_locked_at_zero_velocity"
	OpActuate                      = "actuate"
	OpLoadModel                    = "load_model"
	OpRemoveModel                  = "remove_model"
)

const (
	replyLineMaxBytes     = 1 << 20
	replyLinePreviewBytes = 100
)

// ErrChannelClosed is returned when the simulator closes its stdout before
// answering a request.
var ErrChannelClosed = errors.New("simulator control channel closed")

// Command is one request on the control channel.
type Command struct {
	ID     uint64         `json:"id"`
	Op     string         `json:"op"`
	Object string         `json:"object,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
}

// Reply answers the Command with the same ID. ID 0 is the ready message the
// simulator sends once the scene is loaded.
type Reply struct {
	ID     uint64          `json:"id"`
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Err converts a rejected reply into an error naming the request.
func (r Reply) Err(c Command) error {
	if r.OK {
		return nil
	}
	msg := r.Error
	if msg == "" {
		msg = "request rejected"
	}
	if c.Object != "" {
		return fmt.Errorf("simulator %s %s: %s", c.Op, c.Object, msg)
	}
	return fmt.Errorf("simulator %s: %s", c.Op, msg)
}

// Caller sends a control command and waits for its reply.
type Caller interface {
	Call(c Command) (Reply, error)
}

func writeCommand(w io.Writer, c Command) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// readReply reads lines until it finds the reply for id. Blank lines,
// non-JSON output and replies for other ids are reported through warnFn and
// skipped.
func readReply(r *bufio.Reader, id uint64, warnFn func(string)) (Reply, error) {
	if warnFn == nil {
		warnFn = func(string) {}
	}
	for {
		line, tooLong, err := readLineWithLimit(r, replyLineMaxBytes)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Reply{}, ErrChannelClosed
			}
			return Reply{}, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if tooLong {
			warnFn(fmt.Sprintf("Skipped overlong simulator line (> %d bytes): %s", replyLineMaxBytes, truncateBytes(line, replyLinePreviewBytes)))
			continue
		}

		var reply Reply
		if err := json.Unmarshal(line, &reply); err != nil {
			warnFn(fmt.Sprintf("Simulator output: %s", truncateBytes(line, replyLinePreviewBytes)))
			continue
		}
		if reply.ID != id {
			warnFn(fmt.Sprintf("Discarding simulator reply for id %d while waiting for %d", reply.ID, id))
			continue
		}
		return reply, nil
	}
}

// readLineWithLimit reads one line. Lines longer than maxBytes are consumed
// in full and returned as a prefix with tooLong set.
func readLineWithLimit(r *bufio.Reader, maxBytes int) (line []byte, tooLong bool, err error) {
	var buf []byte
	for {
		part, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, false, err
		}
		if !tooLong {
			if len(buf)+len(part) > maxBytes {
				tooLong = true
				keep := min(len(part), replyLinePreviewBytes)
				if len(buf) < replyLinePreviewBytes {
					buf = append(buf, part[:keep]...)
				}
			} else {
				buf = append(buf, part...)
			}
		}
		if !isPrefix {
			return buf, tooLong, nil
		}
	}
}

func truncateBytes(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	if maxLen < 0 {
		return ""
	}
	return string(b[:maxLen]) + "..."
}

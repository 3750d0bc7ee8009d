package session

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vmsim/arena"
	"github.com/vkngwrapper/vmsim/memutils"
	"golang.org/x/exp/slog"
)

// ErrNoArena is returned internally when a command that needs an arena runs before ALLOC_ARENA
var ErrNoArena error = errors.New("no arena has been allocated")

var errInvalidArgument error = errors.New("invalid command argument")

// Options controls how a Session creates arenas and formats its output
type Options struct {
	// JSONOutput prints PMAP as a JSON document instead of the text map
	JSONOutput bool
	// ArenaFlags are passed to every arena the session creates
	ArenaFlags arena.CreateFlags
}

// Session reads commands from an input stream and runs them against a single arena, writing
// the results to out. Allocation failures are reported on errOut.
type Session struct {
	logger  *slog.Logger
	in      *bufio.Reader
	out     *bufio.Writer
	errOut  io.Writer
	options Options

	arena *arena.Arena
}

// New creates a Session. No arena exists until the input issues ALLOC_ARENA.
func New(logger *slog.Logger, in io.Reader, out, errOut io.Writer, options Options) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Session{
		logger:  logger,
		in:      bufio.NewReader(in),
		out:     bufio.NewWriter(out),
		errOut:  errOut,
		options: options,
	}
}

// Run executes commands until DEALLOC_ARENA or the end of the input. Any arena still allocated
// at the end of the input is destroyed. Command failures are reported on the output streams and
// do not stop the session; only I/O failures and internal consistency failures are returned.
func (s *Session) Run() error {
	defer s.destroyArena()

	for {
		command, err := s.readToken()
		if err == io.EOF {
			return s.out.Flush()
		} else if err != nil {
			return errors.Wrap(err, "failed to read command")
		}

		s.logger.Debug("Session::Run", slog.String("Command", command))

		done, err := s.dispatch(command)
		if errors.Is(err, errInvalidArgument) || errors.Is(err, ErrNoArena) {
			s.logger.Debug("rejected command", slog.String("Command", command), slog.Any("error", err))
			s.println(msgInvalidCommand)
			err = nil
		}
		if err != nil {
			_ = s.out.Flush()
			return err
		}

		err = s.out.Flush()
		if err != nil {
			return errors.Wrap(err, "failed to write output")
		}

		if done {
			return nil
		}
	}
}

func (s *Session) dispatch(command string) (bool, error) {
	switch command {
	case "ALLOC_ARENA":
		return false, s.allocArena()
	case "DEALLOC_ARENA":
		s.destroyArena()
		return true, nil
	case "ALLOC_BLOCK":
		return false, s.allocBlock()
	case "FREE_BLOCK":
		return false, s.freeBlock()
	case "READ":
		return false, s.read()
	case "WRITE":
		return false, s.write()
	case "PMAP":
		return false, s.pmap()
	case "MPROTECT":
		return false, s.mprotect()
	default:
		s.println(msgInvalidCommand)
		return false, nil
	}
}

func (s *Session) destroyArena() {
	if s.arena == nil {
		return
	}

	s.arena.Destroy()
	s.arena = nil
}

func (s *Session) requireArena() error {
	if s.arena == nil {
		return ErrNoArena
	}
	return nil
}

// readToken skips leading whitespace and returns the next run of non-whitespace bytes
func (s *Session) readToken() (string, error) {
	var token []byte
	for {
		b, err := s.in.ReadByte()
		if err == io.EOF && len(token) > 0 {
			return string(token), nil
		} else if err != nil {
			return "", err
		}

		if unicode.IsSpace(rune(b)) {
			if len(token) > 0 {
				return string(token), nil
			}
			continue
		}

		token = append(token, b)
	}
}

func (s *Session) readUint() (uint64, error) {
	token, err := s.readToken()
	if err == io.EOF {
		return 0, errors.Wrap(errInvalidArgument, "missing number")
	} else if err != nil {
		return 0, err
	}

	value, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		s.discardLine()
		return 0, errors.Wrapf(errors.Mark(err, errInvalidArgument), "could not parse %q", token)
	}

	return value, nil
}

func (s *Session) readUints(values ...*uint64) error {
	for _, value := range values {
		var err error
		*value, err = s.readUint()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err == io.EOF {
		err = nil
	}
	return line, err
}

func (s *Session) discardLine() {
	_, _ = s.readLine()
}

// readPayload consumes the single separator following the size argument, then exactly size
// bytes, which may include whitespace and newlines. A payload cut short by the end of the input
// is returned as-is.
func (s *Session) readPayload(size uint64) ([]byte, error) {
	_, err := s.in.ReadByte()
	if err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	limit := int64(math.MaxInt64)
	if size < uint64(limit) {
		limit = int64(size)
	}

	var payload bytes.Buffer
	_, err = io.CopyN(&payload, s.in, limit)
	if err != nil && err != io.EOF {
		return nil, err
	}

	return payload.Bytes(), nil
}

func (s *Session) allocArena() error {
	var capacity uint64
	err := s.readUints(&capacity)
	if err != nil {
		return err
	}

	s.destroyArena()

	newArena, err := arena.New(s.logger, arena.CreateOptions{
		Capacity: capacity,
		Flags:    s.options.ArenaFlags,
	})
	if err != nil {
		s.logger.Warn("could not create arena", slog.Uint64("Capacity", capacity), slog.Any("error", err))
		s.eprintln(msgCouldNotAllocate)
		return nil
	}

	s.arena = newArena
	return nil
}

func (s *Session) allocBlock() error {
	var address, size uint64
	err := s.readUints(&address, &size)
	if err != nil {
		return err
	}

	err = s.requireArena()
	if err != nil {
		return err
	}

	err = s.arena.Reserve(address, size)
	switch {
	case err == nil:
	case errors.Is(err, memutils.ErrAddressOutOfBounds):
		s.println(msgAddressOutOfBounds)
	case errors.Is(err, memutils.ErrEndOutOfBounds):
		s.println(msgEndOutOfBounds)
	case errors.Is(err, memutils.ErrOverlap):
		s.println(msgAlreadyAllocated)
	case errors.Is(err, memutils.ErrInvalidSize), errors.Is(err, memutils.ErrStorage):
		s.logger.Warn("could not reserve block", slog.Uint64("Address", address), slog.Uint64("Size", size), slog.Any("error", err))
		s.eprintln(msgCouldNotAllocate)
	default:
		return err
	}

	return nil
}

func (s *Session) freeBlock() error {
	var address uint64
	err := s.readUints(&address)
	if err != nil {
		return err
	}

	err = s.requireArena()
	if err != nil {
		return err
	}

	err = s.arena.Release(address)
	if errors.Is(err, memutils.ErrNotFound) {
		s.println(msgInvalidFree)
		return nil
	}
	return err
}

func (s *Session) read() error {
	var address, size uint64
	err := s.readUints(&address, &size)
	if err != nil {
		return err
	}

	err = s.requireArena()
	if err != nil {
		return err
	}

	data, clamped, err := s.arena.Read(address, size)
	switch {
	case errors.Is(err, memutils.ErrAddress):
		s.println(msgInvalidRead)
		return nil
	case errors.Is(err, memutils.ErrPermission):
		s.println(msgInvalidReadPermissions)
		return nil
	case err != nil:
		return err
	}

	if clamped {
		s.printf(msgReadClamped, len(data))
	}

	_, _ = s.out.Write(data)
	s.println("")
	return nil
}

func (s *Session) write() error {
	var address, size uint64
	err := s.readUints(&address, &size)
	if err != nil {
		return err
	}

	payload, err := s.readPayload(size)
	if err != nil {
		return errors.Wrap(err, "failed to read write payload")
	}

	err = s.requireArena()
	if err != nil {
		return err
	}

	written, clamped, err := s.arena.Write(address, payload)
	switch {
	case errors.Is(err, memutils.ErrAddress):
		s.println(msgInvalidWrite)
		return nil
	case errors.Is(err, memutils.ErrPermission):
		s.println(msgInvalidWritePermissions)
		return nil
	case err != nil:
		return err
	}

	if clamped {
		s.printf(msgWriteClamped, written)
	}
	return nil
}

func (s *Session) pmap() error {
	err := s.requireArena()
	if err != nil {
		return err
	}

	if s.options.JSONOutput {
		s.println(s.arena.BuildStatsString(true))
		return nil
	}

	writeMap(s.out, s.arena.Snapshot())
	return nil
}

func (s *Session) mprotect() error {
	var address uint64
	err := s.readUints(&address)
	if err != nil {
		return err
	}

	spec, err := s.readLine()
	if err != nil {
		return errors.Wrap(err, "failed to read permissions")
	}

	err = s.requireArena()
	if err != nil {
		return err
	}

	err = s.arena.Protect(address, memutils.ParsePermission(strings.TrimRight(spec, "\r\n")))
	if errors.Is(err, memutils.ErrNotFound) {
		s.println(msgInvalidProtect)
		return nil
	}
	return err
}

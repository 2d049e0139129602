// Package uci implements the Universal Chess Interface protocol loop: a
// dedicated I/O goroutine reading stdin and dispatching to the engine, with
// search itself running on at most one other goroutine at a time.
package uci

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tcheran-engine/tcheran/internal/board"
	"github.com/tcheran-engine/tcheran/internal/engine"
	"github.com/tcheran-engine/tcheran/internal/logging"
)

// exitFatal is os.Exit by default; tests override it to observe a fatal
// invariant violation without killing the test binary.
var exitFatal = func(code int) { os.Exit(code) }

var log = logging.For("uci")

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	engine   *engine.Engine
	position *board.Position

	// positionHashes records the hash of every position reached since the
	// last "position" command. The search's repetition detection reads
	// Position.History, not this slice.
	positionHashes []uint64

	searching     bool
	searchDone    chan struct{}
	stopRequested atomic.Bool
}

// New creates a new UCI protocol handler.
func New(eng *engine.Engine) *UCI {
	return &UCI{
		engine:   eng,
		position: board.NewPosition(),
	}
}

// Run starts the UCI main loop, reading commands from stdin until "quit" or
// EOF. Protocol errors (malformed lines, invalid FEN, unparseable moves) are
// logged and ignored rather than terminating the loop.
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !u.dispatch(line) {
			return
		}
	}
}

// dispatch runs a single command, converting any panic into a logged fatal
// exit rather than letting it unwind past the protocol loop: per the
// engine's error-handling design, an internal invariant violation (bitboard/
// mailbox drift, a corrupted Zobrist hash, an illegal move reaching make())
// is a fatal programming bug, never something the loop should try to
// recover from and keep serving. Returns false when the caller should stop
// reading further commands (on "quit").
func (u *UCI) dispatch(line string) (keepGoing bool) {
	keepGoing = true

	defer func() {
		if r := recover(); r != nil {
			log.Criticalf("invariant violation handling %q: %v", line, r)
			exitFatal(1)
			keepGoing = false
		}
	}()

	parts := strings.Fields(line)
	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "uci":
		u.handleUCI()
	case "isready":
		fmt.Println("readyok")
	case "ucinewgame":
		u.handleNewGame()
	case "position":
		u.handlePosition(args)
	case "go":
		u.handleGo(args)
	case "stop":
		u.handleStop()
	case "quit":
		u.handleStop()
		return false
	case "setoption":
		u.handleSetOption(args)
	case "d":
		u.handleDebug()
	case "perft":
		u.handlePerft(args)
	default:
		log.Debugf("unknown command: %s", cmd)
	}

	return true
}

// handleUCI responds to the "uci" command, advertising the engine's identity
// and its three tunable options.
func (u *UCI) handleUCI() {
	fmt.Println("id name Tcheran")
	fmt.Println("id author Tcheran contributors")
	fmt.Println()
	fmt.Printf("option name Hash type spin default %d min %d max %d\n", engine.DefHashMB, engine.MinHashMB, engine.MaxHashMB)
	fmt.Printf("option name Threads type spin default %d min %d max %d\n", engine.DefThreads, engine.MinThreads, engine.MaxThreads)
	fmt.Printf("option name Move Overhead type spin default %d min %d max %d\n", engine.DefOverheadMS, engine.MinOverheadMS, engine.MaxOverheadMS)
	fmt.Println("uciok")
}

// handleNewGame resets all search state for a new game.
func (u *UCI) handleNewGame() {
	u.engine.NewGame()
	u.position = board.NewPosition()
	u.positionHashes = []uint64{u.position.Hash}
}

// handleDebug prints the board, its FEN, and its Zobrist key.
func (u *UCI) handleDebug() {
	fmt.Println(u.position.String())
	fmt.Printf("Fen: %s\n", u.position.ToFEN())
	fmt.Printf("Key: %016X\n", u.position.Hash)
}

// handlePosition parses and sets up a position. Formats:
//   - position startpos
//   - position startpos moves e2e4 e7e5
//   - position fen <fen>
//   - position fen <fen> moves e2e4
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	u.positionHashes = nil
	var moveStart int

	switch args[0] {
	case "startpos":
		u.position = board.NewPosition()
		moveStart = 1
		for i, arg := range args {
			if arg == "moves" {
				moveStart = i + 1
				break
			}
		}
	case "fen":
		fenEnd := len(args)
		for i, arg := range args[1:] {
			if arg == "moves" {
				fenEnd = i + 1
				break
			}
		}

		fenStr := strings.Join(args[1:fenEnd], " ")
		pos, err := board.ParseFEN(fenStr)
		if err != nil {
			log.Errorf("invalid FEN %q: %v", fenStr, err)
			return
		}
		u.position = pos

		moveStart = len(args)
		for i, arg := range args {
			if arg == "moves" {
				moveStart = i + 1
				break
			}
		}
	default:
		log.Warningf("unrecognized position subcommand: %s", args[0])
		return
	}

	u.positionHashes = append(u.positionHashes, u.position.Hash)

	if moveStart < len(args) {
		for _, moveStr := range args[moveStart:] {
			move := u.parseMove(moveStr)
			if move == board.NoMove {
				log.Warningf("invalid move in position command: %s", moveStr)
				return
			}
			u.position.MakeMove(move)
			u.position.UpdateCheckers()
			u.positionHashes = append(u.positionHashes, u.position.Hash)
		}
	}
}

// parseMove converts a UCI move string (e.g. "e2e4", "a7a8q") to a legal
// board.Move in the current position, or board.NoMove if none matches.
func (u *UCI) parseMove(moveStr string) board.Move {
	if len(moveStr) < 4 {
		return board.NoMove
	}

	fromFile := int(moveStr[0] - 'a')
	fromRank := int(moveStr[1] - '1')
	toFile := int(moveStr[2] - 'a')
	toRank := int(moveStr[3] - '1')

	if fromFile < 0 || fromFile > 7 || fromRank < 0 || fromRank > 7 ||
		toFile < 0 || toFile > 7 || toRank < 0 || toRank > 7 {
		return board.NoMove
	}

	from := board.NewSquare(fromFile, fromRank)
	to := board.NewSquare(toFile, toRank)

	var promo board.PieceType
	if len(moveStr) == 5 {
		switch moveStr[4] {
		case 'q':
			promo = board.Queen
		case 'r':
			promo = board.Rook
		case 'b':
			promo = board.Bishop
		case 'n':
			promo = board.Knight
		}
	}

	moves := u.position.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m.From() != from || m.To() != to {
			continue
		}
		if promo != 0 {
			if m.IsPromotion() && m.Promotion() == promo {
				return m
			}
		} else if !m.IsPromotion() {
			return m
		}
	}

	return board.NoMove
}

// GoOptions holds parsed "go" command options.
type GoOptions struct {
	Depth     int
	Nodes     uint64
	MoveTime  time.Duration
	Infinite  bool
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int
}

// handleGo starts a search in its own goroutine — the one search goroutine
// the scheduling model allows — and prints "bestmove" when it completes.
func (u *UCI) handleGo(args []string) {
	opts := u.parseGoOptions(args)

	u.engine.OnInfo = u.sendInfo

	limits := u.calculateLimits(opts)

	u.searching = true
	u.stopRequested.Store(false)
	u.searchDone = make(chan struct{})

	pos := u.position.Copy()

	go func() {
		defer close(u.searchDone)

		bestMove := u.engine.SearchWithLimits(pos, limits)
		u.searching = false

		validationPos := u.position.Copy()
		legal := validationPos.GenerateLegalMoves()

		if bestMove != board.NoMove {
			for i := 0; i < legal.Len(); i++ {
				if legal.Get(i) == bestMove {
					fmt.Printf("bestmove %s\n", bestMove.String())
					return
				}
			}
			log.Errorf("search returned illegal move %s (%d legal moves available)", bestMove.String(), legal.Len())
		}

		if legal.Len() > 0 {
			fmt.Printf("bestmove %s\n", legal.Get(0).String())
		} else {
			fmt.Println("bestmove 0000")
		}
	}()
}

// parseGoOptions parses "go" command arguments.
func (u *UCI) parseGoOptions(args []string) GoOptions {
	opts := GoOptions{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			if i+1 < len(args) {
				opts.Depth, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "nodes":
			if i+1 < len(args) {
				n, _ := strconv.ParseUint(args[i+1], 10, 64)
				opts.Nodes = n
				i++
			}
		case "movetime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.MoveTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "infinite":
			opts.Infinite = true
		case "wtime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.WTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "btime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.BTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "winc":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.WInc = time.Duration(ms) * time.Millisecond
				i++
			}
		case "binc":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.BInc = time.Duration(ms) * time.Millisecond
				i++
			}
		case "movestogo":
			if i+1 < len(args) {
				opts.MovesToGo, _ = strconv.Atoi(args[i+1])
				i++
			}
		}
	}

	return opts
}

// calculateLimits converts GoOptions into engine.SearchLimits; the engine's
// own TimeManager does the actual soft/hard budget math.
func (u *UCI) calculateLimits(opts GoOptions) engine.SearchLimits {
	return engine.SearchLimits{
		Depth:     opts.Depth,
		Nodes:     opts.Nodes,
		MoveTime:  opts.MoveTime,
		WTime:     opts.WTime,
		BTime:     opts.BTime,
		WInc:      opts.WInc,
		BInc:      opts.BInc,
		MovesToGo: opts.MovesToGo,
		Infinite:  opts.Infinite,
	}
}

// sendInfo outputs search info in UCI format, validating the PV against the
// root position so a stale or corrupted line is never sent further than the
// first move that's actually legal.
func (u *UCI) sendInfo(info engine.SearchInfo) {
	var parts []string

	parts = append(parts, fmt.Sprintf("depth %d", info.Depth))
	if info.SelDepth > 0 {
		parts = append(parts, fmt.Sprintf("seldepth %d", info.SelDepth))
	}
	parts = append(parts, fmt.Sprintf("score %s", engine.ScoreToString(info.Score)))
	parts = append(parts, fmt.Sprintf("nodes %d", info.Nodes))
	parts = append(parts, fmt.Sprintf("time %d", info.Time.Milliseconds()))

	if info.Time > 0 {
		nps := uint64(float64(info.Nodes) / info.Time.Seconds())
		parts = append(parts, fmt.Sprintf("nps %d", nps))
	}
	if info.HashFull > 0 {
		parts = append(parts, fmt.Sprintf("hashfull %d", info.HashFull))
	}

	if len(info.PV) > 0 {
		validPV := make([]string, 0, len(info.PV))
		testPos := u.position.Copy()
		for _, move := range info.PV {
			legal := testPos.GenerateLegalMoves()
			isLegal := false
			for i := 0; i < legal.Len(); i++ {
				if legal.Get(i) == move {
					isLegal = true
					break
				}
			}
			if !isLegal {
				break
			}
			validPV = append(validPV, move.String())
			testPos.MakeMove(move)
		}
		if len(validPV) > 0 {
			parts = append(parts, "pv "+strings.Join(validPV, " "))
		}
	}

	fmt.Printf("info %s\n", strings.Join(parts, " "))
}

// handleStop requests that the in-progress search stop and waits for it to
// unwind before returning, so "bestmove" is always printed before any
// subsequent command is processed.
func (u *UCI) handleStop() {
	if u.searching {
		u.stopRequested.Store(true)
		u.engine.Stop()
		<-u.searchDone
	}
}

// handleSetOption processes "setoption name <name> value <value>" commands.
func (u *UCI) handleSetOption(args []string) {
	var name, value string
	readingName, readingValue := false, false

	for _, arg := range args {
		switch arg {
		case "name":
			readingName, readingValue = true, false
		case "value":
			readingName, readingValue = false, true
		default:
			if readingName {
				if name != "" {
					name += " "
				}
				name += arg
			} else if readingValue {
				if value != "" {
					value += " "
				}
				value += arg
			}
		}
	}

	if err := u.engine.SetOption(name, value); err != nil {
		log.Warningf("setoption %s=%s rejected: %v", name, value, err)
	}
}

// handlePerft runs a perft test to the given depth (default 5) from the
// current position.
func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		if d, err := strconv.Atoi(args[0]); err == nil {
			depth = d
		}
	}

	start := time.Now()
	nodes := u.engine.Perft(u.position, depth)
	elapsed := time.Since(start)

	fmt.Printf("Nodes: %d\n", nodes)
	fmt.Printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		nps := float64(nodes) / elapsed.Seconds()
		fmt.Printf("NPS: %.0f\n", nps)
	}
}

package room

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/blockbattle/tetris-server/internal/engine"
	"github.com/blockbattle/tetris-server/internal/store"
	"github.com/blockbattle/tetris-server/pkg/types"
)

const recordTimeout = 5 * time.Second

func strPtr(s string, ok bool) *string {
	if !ok || s == "" {
		return nil
	}
	return &s
}

func (r *Room) startMatch() {
	r.state = StateStarting
	r.targets.Reset()
	clear(r.engines)
	for _, id := range r.order {
		p := r.players[id]
		p.alive = true
		p.report = r.emptyReport()
		e, err := engine.New(r.cfg.Rows, r.cfg.Cols, rand.New(rand.NewPCG(r.rng.Uint64(), r.rng.Uint64())))
		if err != nil {
			// dimensions are validated by config; an engine-less player still
			// plays on client reports.
			r.log.Error("engine init failed", zap.String("player_id", id), zap.Error(err))
		} else {
			r.engines[id] = e
		}
		r.targets.AddPlayer(id)
	}
	r.targets.AssignAll()
	r.roundN = len(r.order)
	r.started = time.Now()
	r.state = StateActive
	r.publish()

	gs := r.gameState()
	for _, id := range r.order {
		t, ok := r.targets.Target(id)
		r.out.Send(id, types.GameStart{
			Type:          types.MsgGameStart,
			GameState:     gs,
			ItemMode:      r.cfg.ItemMode,
			InitialTarget: strPtr(t, ok),
		})
	}
	r.ticker = StartTicker(r.ctx, r.cfg.TickInterval, r.out, r.Members)
	r.log.Info("match started", zap.Int("players", r.roundN), zap.Bool("item_mode", r.cfg.ItemMode))
}

func (r *Room) stopTicker() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}

func (r *Room) broadcastState() {
	r.out.Broadcast(r.order, types.GameStateUpdate{Type: types.MsgGameStateUpdate, GameState: r.gameState()})
}

// retarget drops id from the graph and tells every reassigned attacker.
func (r *Room) retarget(id string) {
	for from, to := range r.targets.Remove(id) {
		r.out.Send(from, types.TargetChanged{Type: types.MsgTargetChanged, NewTarget: strPtr(to, true)})
	}
}

func (r *Room) eliminate(id string) {
	p := r.players[id]
	p.alive = false
	p.report.GameOver = true
	r.retarget(id)
	r.log.Info("player eliminated", zap.String("player_id", id))
	r.out.Broadcast(r.order, types.PlayerGameOver{Type: types.MsgPlayerGameOver, PlayerID: id, PlayerName: p.name})
	r.checkEnd()
}

func (r *Room) checkEnd() {
	var alive []*player
	for _, id := range r.order {
		if p := r.players[id]; p.alive {
			alive = append(alive, p)
		}
	}
	switch len(alive) {
	case 0:
		r.endMatch(nil, types.ReasonDraw)
	case 1:
		if r.roundN > 1 {
			r.endMatch(alive[0], types.ReasonLastSurvivor)
		}
	}
}

func (r *Room) endMatch(winner *player, reason string) {
	r.state = StateEnded
	r.stopTicker()

	end := types.GameEnd{Type: types.MsgGameEnd, Reason: reason}
	if winner != nil {
		end.WinnerID = winner.id
		end.WinnerName = winner.name
		end.WinnerScore = winner.report.Score
	}
	r.out.Broadcast(r.order, end)
	r.log.Info("match ended", zap.String("reason", reason), zap.String("winner_id", end.WinnerID))
	r.record(store.MatchResult{
		RoomID:      r.cfg.ID,
		RoomName:    r.cfg.Name,
		WinnerID:    end.WinnerID,
		WinnerName:  end.WinnerName,
		WinnerScore: end.WinnerScore,
		Reason:      reason,
		PlayerCount: r.roundN,
		StartedAt:   r.started,
		EndedAt:     time.Now(),
	})

	r.state = StateLobby
	r.targets.Reset()
	clear(r.engines)
	for _, p := range r.players {
		p.ready = false
		p.alive = false
		p.report = r.emptyReport()
	}
	r.roundN = 0
	r.publish()
	r.out.Broadcast(r.order, types.RoomMessage{Type: types.MsgRoomUpdate, Room: r.Info()})
}

func (r *Room) record(res store.MatchResult) {
	if r.rec == nil {
		return
	}
	log := r.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := r.rec.Record(ctx, res); err != nil {
			log.Warn("record match failed", zap.Error(err))
		}
	}()
}

func (r *Room) errorTo(id, msg string) {
	r.out.Send(id, types.NewError(msg))
}

// validTarget reports whether target is a live opponent of from.
func (r *Room) validTarget(from, target string) bool {
	return target != from && r.isAlive(target)
}

func (r *Room) updateGrid(msg UpdateGrid) {
	p := r.players[msg.PlayerID]
	if p == nil || r.state != StateActive {
		return
	}
	p.report.Grid = msg.Grid
	p.report.Score = msg.Score
	p.report.Level = types.IntOr(msg.Level, p.report.Level)
	p.report.LinesCleared = types.IntOr(msg.Lines, p.report.LinesCleared)
	p.report.Combo = types.IntOr(msg.Combo, p.report.Combo)
	r.broadcastState()
}

func (r *Room) attack(msg Attack) {
	if r.state != StateActive || !r.isAlive(msg.PlayerID) || msg.Lines <= 0 {
		return
	}
	if msg.TargetID == "" {
		r.attackAll(msg.PlayerID, msg.Lines, msg.Combo)
		return
	}
	if !r.validTarget(msg.PlayerID, msg.TargetID) {
		r.errorTo(msg.PlayerID, "invalid target")
		return
	}
	r.deliverAttack(msg.PlayerID, msg.TargetID, msg.Lines, msg.Combo)
}

// attackAll sends an untargeted attack to every other live player.
func (r *Room) attackAll(from string, lines, combo int) {
	for _, id := range r.order {
		if id != from && r.isAlive(id) {
			r.deliverAttack(from, id, lines, combo)
		}
	}
}

func (r *Room) deliverAttack(from, to string, lines, combo int) {
	if e := r.engines[to]; e != nil && r.isAlive(to) {
		e.QueueGarbage(lines)
	}
	r.out.Send(to, types.ReceiveAttack{
		Type:       types.MsgReceiveAttack,
		FromPlayer: from,
		FromName:   r.players[from].name,
		Lines:      lines,
		Combo:      combo,
	})
}

func (r *Room) switchTarget(id string) {
	if r.state != StateActive || !r.isAlive(id) {
		return
	}
	t, ok := r.targets.Switch(id)
	r.out.Send(id, types.TargetChanged{Type: types.MsgTargetChanged, NewTarget: strPtr(t, ok)})
}

// itemGate rejects item traffic outside an item-mode match.
func (r *Room) itemGate(id string) bool {
	if !r.cfg.ItemMode {
		r.errorTo(id, "item mode is disabled")
		return false
	}
	if r.state != StateActive {
		r.errorTo(id, "game not active")
		return false
	}
	return r.isAlive(id)
}

func (r *Room) itemAttack(msg ItemAttack) {
	if !r.itemGate(msg.PlayerID) {
		return
	}
	from := r.players[msg.PlayerID]

	if msg.ItemType == types.ItemToClear {
		for _, id := range r.order {
			if id != msg.PlayerID && r.isAlive(id) {
				r.out.Send(id, types.ItemChange{
					Type:       types.MsgItemChange,
					ChangeType: types.ChangeToClear,
					FromPlayer: from.id,
					FromName:   from.name,
				})
			}
		}
		return
	}

	if !r.validTarget(msg.PlayerID, msg.TargetID) {
		r.errorTo(msg.PlayerID, "invalid target")
		return
	}
	if msg.ItemType == types.ItemRedirectTarget {
		t, ok := r.targets.Redirect(msg.TargetID)
		r.out.Send(msg.TargetID, types.TargetRedirect{
			Type:       types.MsgTargetRedirect,
			NewTarget:  strPtr(t, ok),
			FromPlayer: from.id,
			FromName:   from.name,
		})
		return
	}
	r.out.Send(msg.TargetID, types.ItemAttack{
		Type:       types.MsgItemAttack,
		ItemType:   msg.ItemType,
		FromPlayer: from.id,
		FromName:   from.name,
	})
}

func (r *Room) gridSwap(msg GridSwap) {
	if !r.itemGate(msg.PlayerID) {
		return
	}
	if !r.validTarget(msg.PlayerID, msg.TargetID) {
		r.errorTo(msg.PlayerID, "invalid target")
		return
	}
	from := r.players[msg.PlayerID]
	r.out.Send(msg.TargetID, types.GridSwap{
		Type:       types.MsgGridSwap,
		Grid:       msg.Grid,
		FromPlayer: from.id,
		FromName:   from.name,
	})
	r.out.Send(msg.TargetID, types.RequestGrid{
		Type:          types.MsgRequestGrid,
		RequesterID:   from.id,
		RequesterName: from.name,
	})
}

// swapTrim is the number of bottom rows stripped from a returned grid so a
// swap never hands back the receiver's own garbage floor.
const swapTrim = 2

func (r *Room) sendGrid(msg SendGrid) {
	if !r.itemGate(msg.PlayerID) {
		return
	}
	if !r.validTarget(msg.PlayerID, msg.TargetID) {
		r.errorTo(msg.PlayerID, "invalid target")
		return
	}
	from := r.players[msg.PlayerID]
	r.out.Send(msg.TargetID, types.GridSwap{
		Type:       types.MsgGridSwap,
		Grid:       engine.Grid(msg.Grid).TrimBottom(swapTrim),
		FromPlayer: from.id,
		FromName:   from.name,
	})
}

func (r *Room) input(msg Input) {
	if r.state != StateActive || !r.isAlive(msg.PlayerID) {
		return
	}
	e := r.engines[msg.PlayerID]
	if e == nil {
		return
	}

	atk, locked := 0, false
	switch msg.Action {
	case types.InputLeft:
		e.MoveLeft()
	case types.InputRight:
		e.MoveRight()
	case types.InputRotateCW:
		e.Rotate(true)
	case types.InputRotateCCW:
		e.Rotate(false)
	case types.InputHold:
		e.Hold()
	case types.InputDown:
		if !e.MoveDown() {
			atk, locked = e.LastLock().Attack, true
		}
	case types.InputDrop:
		atk, locked = e.HardDrop(), true
	default:
		return
	}

	p := r.players[msg.PlayerID]
	p.report = types.PlayerGameState{
		Grid:         e.Snapshot(),
		Score:        e.Score,
		Level:        e.Level,
		LinesCleared: e.Lines,
		Combo:        e.Combo(),
		GameOver:     e.GameOver(),
	}

	if locked && atk > 0 {
		if t, ok := r.targets.Target(msg.PlayerID); ok {
			r.deliverAttack(msg.PlayerID, t, atk, e.Combo())
		} else {
			r.attackAll(msg.PlayerID, atk, e.Combo())
		}
	}
	r.broadcastState()

	if e.GameOver() {
		r.eliminate(msg.PlayerID)
	}
}

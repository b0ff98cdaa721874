package game

import (
	"context"
	"encoding/json"

	"github.com/mpgame/mp-server/pkg/rpc"
)

// Method names served by Register.
const (
	MethodGetVersion   = "system.getVersion"
	MethodHealth       = "system.health"
	MethodListMethods  = "system.listMethods"
	MethodCheckVersion = "system.checkVersion"
	MethodJoin         = "game.join"
	MethodMovePlayer   = "game.movePlayer"
	MethodGetPlayer    = "game.getPlayer"
	MethodListPlayers  = "game.listPlayers"
	MethodLeave        = "game.leave"
)

// Register adds every game and system method to r.
func Register(r *rpc.Router, g *Game) {
	r.Register(MethodGetVersion, rpc.Func(func(json.RawMessage) (VersionOutput, error) {
		return VersionOutput{Version: g.Version()}, nil
	}))
	r.Register(MethodHealth, rpc.AsyncFunc(func(ctx context.Context, _ struct{}) (*HealthOutput, error) {
		return g.Health(ctx), nil
	}))
	r.Register(MethodListMethods, rpc.Func(func(struct{}) (ListMethodsOutput, error) {
		return ListMethodsOutput{Methods: r.Methods()}, nil
	}))
	r.Register(MethodCheckVersion, rpc.Func(g.CheckVersion))

	r.Register(MethodJoin, rpc.AsyncFunc(g.Join))
	r.Register(MethodMovePlayer, rpc.AsyncFunc(g.MovePlayer))
	r.Register(MethodGetPlayer, rpc.AsyncFunc(g.GetPlayer))
	r.Register(MethodListPlayers, rpc.AsyncFunc(g.ListPlayers))
	r.Register(MethodLeave, rpc.AsyncFunc(g.Leave))
}

package nakama

const (
	// RpcQuickMatch is the Nakama RPC id clients call to find or create a lobby-capable match.
	RpcQuickMatch = "quick_match"

	// MatchNamePontinhos is the authoritative match handler name registered with Nakama.
	MatchNamePontinhos = "pontinhos_match"

	// GameLabel identifies our matches in the match listing.
	GameLabel = "pontinhos"
)

const (
	gameConfigPath    = "data/game_config.json"
	botIdentitiesPath = "data/bot_identities.json"
)

// Match label keys.
const (
	labelKeyOpen    = "open"
	labelKeyGame    = "game"
	labelKeyPhase   = "phase"
	labelKeyPlayers = "players"
)

// Match tick rate in ticks per second.
const tickRate = 5

// Error codes sent with OpCodeGameError.
const (
	errCodeBadRequest = 400
	errCodeForbidden  = 403
	errCodeConflict   = 409
	errCodeInternal   = 500
)

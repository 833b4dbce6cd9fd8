package game

const (
	ArenaWidth  = 800.0
	ArenaHeight = 400.0
	SpawnLeftX  = 200.0
	SpawnRightX = 600.0
	SpawnY      = 300.0

	MoveStep    = 4.0  // units per tick while walking
	AttackRange = 60.0 // horizontal distance at which fighters trade blows

	AttackAnimTicks = 3 // ticks an attacker stays in the attacking pose
	HurtTicks       = 3 // ticks a struck fighter stays hurt unless it acts
)

package trader

import "errors"

var (
	errAlreadyPlaced = errors.New("order already placed")
	errNotPlaced     = errors.New("order has no assigned number yet")
	errNotMovable    = errors.New("order kind does not support move")
	errTerminal      = errors.New("order already terminal")
)

package world

// A combined cell packs a legacy block id and its metadata nibble into 16 bits:
// the high 12 bits hold the id, the low 4 bits the data value.

// Combined packs id and data into a combined cell.
func Combined(id, data int) uint16 {
	return uint16(id<<4 | data&0xF)
}

// CellID returns the block id stored in a combined cell.
func CellID(c uint16) int {
	return int(c >> 4)
}

// CellData returns the metadata nibble stored in a combined cell.
func CellData(c uint16) int {
	return int(c & 0xF)
}

// Block is a block id and data value, optionally carrying tile entity data.
type Block struct {
	ID   int
	Data int
	NBT  Tag
}

// Air is the empty block.
var Air = Block{}

// BlockFromCombined unpacks a combined cell into a Block without NBT.
func BlockFromCombined(c uint16) Block {
	return Block{ID: CellID(c), Data: CellData(c)}
}

// Combined returns the combined cell for the block.
func (b Block) Combined() uint16 {
	return Combined(b.ID, b.Data)
}

// nbtBlocks holds the ids of 1.8 blocks that keep tile entity data.
var nbtBlocks = [4096]bool{
	23:  true, // dispenser
	25:  true, // note block
	26:  true, // bed
	29:  true, // sticky piston
	33:  true, // piston
	34:  true, // piston head
	36:  true, // moving piston
	52:  true, // mob spawner
	54:  true, // chest
	61:  true, // furnace
	62:  true, // lit furnace
	63:  true, // standing sign
	68:  true, // wall sign
	84:  true, // jukebox
	116: true, // enchanting table
	117: true, // brewing stand
	119: true, // end portal
	130: true, // ender chest
	137: true, // command block
	138: true, // beacon
	140: true, // flower pot
	144: true, // skull
	146: true, // trapped chest
	149: true, // unpowered comparator
	150: true, // powered comparator
	151: true, // daylight detector
	154: true, // hopper
	158: true, // dropper
	176: true, // standing banner
	177: true, // wall banner
	178: true, // inverted daylight detector
}

// HasNBT reports whether blocks with the given id carry tile entity data.
func HasNBT(id int) bool {
	if id < 0 || id >= len(nbtBlocks) {
		return false
	}
	return nbtBlocks[id]
}

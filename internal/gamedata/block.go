package gamedata

// Block is one entry of a minecraft-data blocks.json file. Only the fields
// used for lighting and lookup are decoded.
type Block struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Hardness    *float64 `json:"hardness"`
	Material    string   `json:"material"`
	Transparent bool     `json:"transparent"`
	EmitLight   int      `json:"emitLight"`
	FilterLight int      `json:"filterLight"`
}

package encoder

// Parcel family identifiers (PSF §3, §4.3).
const (
	PIDNav      uint16 = 0x10 // roads / navigation topology
	PIDPOINames uint16 = 0x20 // POI name string table
	PIDDens0    uint16 = 0x30 // density tile directory
	PIDDens1    uint16 = 0x31 // density tile payload
	PIDCartotop uint16 = 0x40 // region directory (global scope only)
	PIDWayIdx   uint16 = 0x50 // OSM-id B+-tree nodes
	PIDKDTree   uint16 = 0x60 // spatial KD-tree nodes
)

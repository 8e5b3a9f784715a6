package lod

import "testing"

func TestForGroundOverlay_Precedence(t *testing.T) {
	b := Bounds{MinZoom: 3, MaxZoom: 10, FloorZoom: 5}

	tests := []struct {
		name  string
		z     int
		class Class
		want  Profile
	}{
		{"max zoom keeps last resolution", 10, Opaque, Profile{128, -1, -1, -1}},
		{"floor zoom never hidden", 5, Opaque, Profile{-1, 1024, -1, -1}},
		{"min zoom never hidden", 3, Transparent, Profile{-1, 640, -1, -1}},
		{"below min zoom is placeholder", 2, Opaque, Profile{256, 512, -1, -1}},
		{"middle is unmodified opaque", 7, Opaque, Profile{128, 1024, -1, -1}},
		{"middle is unmodified transparent", 7, Transparent, Profile{128, 640, -1, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForGroundOverlay(tt.z, b, tt.class); got != tt.want {
				t.Errorf("ForGroundOverlay(%d) = %+v, want %+v", tt.z, got, tt.want)
			}
		})
	}
}

func TestForGroundOverlay_MaxBeatsFloor(t *testing.T) {
	// single-level source at the floor: the max rule wins
	got := ForGroundOverlay(5, Bounds{MinZoom: 5, MaxZoom: 5, FloorZoom: 5}, Opaque)
	if got.MaxLodPixels != Disabled || got.MinLodPixels != 128 {
		t.Fatalf("got %+v", got)
	}
}

func TestForGroundOverlay_DoesNotMutateTable(t *testing.T) {
	_ = ForGroundOverlay(10, Bounds{MinZoom: 3, MaxZoom: 10, FloorZoom: 5}, Transparent)
	if ForClass(Transparent).MaxLodPixels != 640 {
		t.Fatal("profile table mutated")
	}
}

func TestForNetworkLink(t *testing.T) {
	if got := ForNetworkLink(); got != (Profile{176, -1, -1, -1}) {
		t.Fatalf("got %+v", got)
	}
}

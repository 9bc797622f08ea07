package models

import "testing"

func TestParseSlotID(t *testing.T) {
	valid := []string{
		"coverImage",
		"previewVideo",
		"sourceDocument",
		"section[0].lesson[0].video",
		"section[4].lesson[12].material",
	}
	for _, raw := range valid {
		id, err := ParseSlotID(raw)
		if err != nil {
			t.Errorf("ParseSlotID(%q) failed: %v", raw, err)
		}
		if string(id) != raw {
			t.Errorf("ParseSlotID(%q) returned %q", raw, id)
		}
	}

	invalid := []string{
		"",
		"cover",
		"preview",
		"banner",
		"section[0].lesson[0].audio",
		"section[-1].lesson[0].video",
		"lesson[0].video",
	}
	for _, raw := range invalid {
		if _, err := ParseSlotID(raw); err == nil {
			t.Errorf("ParseSlotID(%q) should be rejected", raw)
		}
	}
}

func TestSlotExpectedKind(t *testing.T) {
	cases := map[SlotID]AssetKind{
		SlotCoverImage:           KindImage,
		SlotPreviewVideo:         KindVideo,
		SlotSourceDocument:       KindDocument,
		LessonVideoSlot(1, 2):    KindVideo,
		LessonMaterialSlot(0, 0): KindDocument,
	}
	for id, want := range cases {
		got, err := id.ExpectedKind()
		if err != nil {
			t.Errorf("ExpectedKind(%s) failed: %v", id, err)
		}
		if got != want {
			t.Errorf("ExpectedKind(%s) = %s, want %s", id, got, want)
		}
	}

	if _, err := SlotID("banner").ExpectedKind(); err == nil {
		t.Error("unknown slot should have no expected kind")
	}
}

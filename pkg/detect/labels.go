package detect

// cocoClasses are the 80 COCO class names, indexed by YOLO class ID.
var cocoClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train",
	"truck", "boat", "traffic light", "fire hydrant", "stop sign",
	"parking meter", "bench", "bird", "cat", "dog", "horse", "sheep", "cow",
	"elephant", "bear", "zebra", "giraffe", "backpack", "umbrella",
	"handbag", "tie", "suitcase", "frisbee", "skis", "snowboard",
	"sports ball", "kite", "baseball bat", "baseball glove", "skateboard",
	"surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork",
	"knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv",
	"laptop", "mouse", "remote", "keyboard", "cell phone", "microwave",
	"oven", "toaster", "sink", "refrigerator", "book", "clock", "vase",
	"scissors", "teddy bear", "hair drier", "toothbrush",
}

// dangerousLabels are objects treated as immediate safety hazards for a
// visually-impaired pedestrian.
var dangerousLabels = map[string]bool{
	"bicycle":    true,
	"car":        true,
	"motorcycle": true,
	"bus":        true,
	"train":      true,
	"truck":      true,
	"knife":      true,
	"scissors":   true,
	"oven":       true,
	"fire hydrant": true,
}

var vehicleLabels = map[string]bool{
	"bicycle":    true,
	"car":        true,
	"motorcycle": true,
	"airplane":   true,
	"bus":        true,
	"train":      true,
	"truck":      true,
	"boat":       true,
}

var animalLabels = map[string]bool{
	"bird": true, "cat": true, "dog": true, "horse": true, "sheep": true,
	"cow": true, "elephant": true, "bear": true, "zebra": true, "giraffe": true,
}

// ClassName returns the COCO label for a class ID, or "unknown".
func ClassName(id int) string {
	if id < 0 || id >= len(cocoClasses) {
		return "unknown"
	}
	return cocoClasses[id]
}

// IsDangerous reports whether a label is in the hazard set.
func IsDangerous(label string) bool {
	return dangerousLabels[label]
}

// Categorize maps a label to its category tag.
func Categorize(label string) Category {
	switch {
	case label == "person":
		return CategoryPerson
	case vehicleLabels[label]:
		return CategoryVehicle
	case animalLabels[label]:
		return CategoryAnimal
	default:
		return CategoryObject
	}
}

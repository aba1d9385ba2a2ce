package enums

// TransportMode is a vehicle a courier declares on their delivery profile.
type TransportMode string

const (
	TransportModeWalking TransportMode = "WALKING"
	TransportModeBicycle TransportMode = "BICYCLE"
	TransportModeEBike   TransportMode = "EBIKE"
	TransportModeScooter TransportMode = "SCOOTER"
	TransportModeCar     TransportMode = "CAR"
)

var validTransportModes = []TransportMode{
	TransportModeWalking,
	TransportModeBicycle,
	TransportModeEBike,
	TransportModeScooter,
	TransportModeCar,
}

func (m TransportMode) String() string {
	return string(m)
}

// IsValid reports whether the transport mode is known.
func (m TransportMode) IsValid() bool {
	return member(m, validTransportModes)
}

// ParseTransportMode converts raw input into TransportMode.
func ParseTransportMode(value string) (TransportMode, error) {
	return parseUpper(value, "transport mode", validTransportModes)
}

package core

// Physical constants in CGS units
const (
	GravitationalConstant = 6.67430e-8      // cm^3 g^-1 s^-2
	SpeedOfLight          = 2.99792458e10   // cm s^-1
	SolarMass             = 1.98841e33      // g
	ProtonMass            = 1.67262192e-24  // g
	ElectronMass          = 9.1093837e-28   // g
	ElementaryCharge      = 4.80320471e-10  // statC
	BoltzmannConstant     = 1.380649e-16    // erg K^-1
	PlanckConstant        = 6.62607015e-27  // erg s
)

// GravitationalLength returns GM/c^2 in centimetres for a mass given in solar masses
func GravitationalLength(massMsun float64) float64 {
	return GravitationalConstant * massMsun * SolarMass / (SpeedOfLight * SpeedOfLight)
}

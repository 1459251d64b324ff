package kinematics

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/pathplanner/spatialmath"
)

// Kinematics converts between chassis speeds and module states for a drivetrain.
type Kinematics interface {
	// NumModules is the number of wheel modules (2 for a differential drive).
	NumModules() int
	// ModuleLocations are the module offsets from the robot center, robot frame.
	ModuleLocations() []r2.Point
	// ToModuleStates returns robot-relative module states for robot-relative chassis speeds.
	ToModuleStates(speeds ChassisSpeeds) []ModuleState
	// ToChassisSpeeds is the least-squares inverse of ToModuleStates.
	ToChassisSpeeds(states []ModuleState) ChassisSpeeds
	// ChassisForcesToWheelForces distributes a robot-relative force (N) and torque (Nm) evenly
	// across the modules and returns the force vector each module must apply.
	ChassisForcesToWheelForces(forceX, forceY, torque float64) []r2.Point
}

// forceDistribution maps (Fx, Fy, torque) to per-module force vectors. Each module gets an equal
// share of the linear force and a share of the torque acting perpendicular to its offset.
type forceDistribution struct {
	matrix *mat.Dense
	n      int
}

func newForceDistribution(locations []r2.Point) forceDistribution {
	n := len(locations)
	m := mat.NewDense(2*n, 3, nil)
	for i, loc := range locations {
		norm2 := loc.Norm() * loc.Norm()
		var reciprocal r2.Point
		if norm2 > 0 {
			reciprocal = loc.Mul(1 / norm2)
		}
		m.SetRow(2*i, []float64{1, 0, -reciprocal.Y})
		m.SetRow(2*i+1, []float64{0, 1, reciprocal.X})
	}
	return forceDistribution{matrix: m, n: n}
}

func (fd forceDistribution) apply(forceX, forceY, torque float64) []r2.Point {
	chassis := mat.NewVecDense(3, []float64{forceX, forceY, torque})
	var out mat.VecDense
	out.MulVec(fd.matrix, chassis)
	out.ScaleVec(1/float64(fd.n), &out)

	forces := make([]r2.Point, fd.n)
	for i := range forces {
		forces[i] = r2.Point{X: out.AtVec(2 * i), Y: out.AtVec(2*i + 1)}
	}
	return forces
}

// SwerveKinematics is the kinematic model of a drivetrain whose modules steer independently.
type SwerveKinematics struct {
	locations []r2.Point
	// forward is the pseudo-inverse of the inverse kinematics matrix.
	forward *mat.Dense
	forces  forceDistribution
}

// NewSwerveKinematics builds the model for modules at the given robot-frame offsets.
func NewSwerveKinematics(locations ...r2.Point) (*SwerveKinematics, error) {
	if len(locations) < 2 {
		return nil, errors.Errorf("swerve kinematics needs at least 2 modules, got %d", len(locations))
	}
	n := len(locations)
	inverse := mat.NewDense(2*n, 3, nil)
	for i, loc := range locations {
		inverse.SetRow(2*i, []float64{1, 0, -loc.Y})
		inverse.SetRow(2*i+1, []float64{0, 1, loc.X})
	}

	// pinv(A) = (AᵀA)⁻¹Aᵀ
	var ata, ataInv, forward mat.Dense
	ata.Mul(inverse.T(), inverse)
	if err := ataInv.Inverse(&ata); err != nil {
		return nil, errors.Wrap(err, "module locations are degenerate")
	}
	forward.Mul(&ataInv, inverse.T())

	return &SwerveKinematics{
		locations: append([]r2.Point(nil), locations...),
		forward:   &forward,
		forces:    newForceDistribution(locations),
	}, nil
}

// NumModules returns the number of modules.
func (k *SwerveKinematics) NumModules() int {
	return len(k.locations)
}

// ModuleLocations returns the module offsets.
func (k *SwerveKinematics) ModuleLocations() []r2.Point {
	return k.locations
}

// ToModuleStates returns the module states for the given speeds. Modules with zero speed point
// at 0°.
func (k *SwerveKinematics) ToModuleStates(speeds ChassisSpeeds) []ModuleState {
	states := make([]ModuleState, len(k.locations))
	k.ToModuleStatesInto(states, speeds)
	return states
}

// ToModuleStatesInto is ToModuleStates writing into a caller-owned slice.
func (k *SwerveKinematics) ToModuleStatesInto(dst []ModuleState, speeds ChassisSpeeds) {
	for i, loc := range k.locations {
		vx := speeds.Vx - speeds.Omega*loc.Y
		vy := speeds.Vy + speeds.Omega*loc.X
		dst[i] = ModuleState{
			Speed: math.Hypot(vx, vy),
			Angle: spatialmath.NewRotationFromVector(vx, vy),
		}
	}
}

// ToChassisSpeeds solves for the chassis speeds that best match the module states.
func (k *SwerveKinematics) ToChassisSpeeds(states []ModuleState) ChassisSpeeds {
	n := len(k.locations)
	moduleVec := mat.NewVecDense(2*n, nil)
	for i := 0; i < n && i < len(states); i++ {
		moduleVec.SetVec(2*i, states[i].Speed*states[i].Angle.Cos())
		moduleVec.SetVec(2*i+1, states[i].Speed*states[i].Angle.Sin())
	}
	var chassis mat.VecDense
	chassis.MulVec(k.forward, moduleVec)
	return ChassisSpeeds{Vx: chassis.AtVec(0), Vy: chassis.AtVec(1), Omega: chassis.AtVec(2)}
}

// ChassisForcesToWheelForces distributes chassis force and torque across the modules.
func (k *SwerveKinematics) ChassisForcesToWheelForces(forceX, forceY, torque float64) []r2.Point {
	return k.forces.apply(forceX, forceY, torque)
}

// DifferentialKinematics is the kinematic model of a tank drive. Module 0 is the left side and
// module 1 the right side.
type DifferentialKinematics struct {
	trackwidth float64
	locations  []r2.Point
	forces     forceDistribution
}

// NewDifferentialKinematics builds the model for the given distance between the wheel sides.
func NewDifferentialKinematics(trackwidth float64) (*DifferentialKinematics, error) {
	if trackwidth <= 0 {
		return nil, errors.Errorf("trackwidth must be positive, got %f", trackwidth)
	}
	locations := []r2.Point{{X: 0, Y: trackwidth / 2}, {X: 0, Y: -trackwidth / 2}}
	return &DifferentialKinematics{
		trackwidth: trackwidth,
		locations:  locations,
		forces:     newForceDistribution(locations),
	}, nil
}

// Trackwidth returns the distance between the left and right wheels.
func (k *DifferentialKinematics) Trackwidth() float64 {
	return k.trackwidth
}

// NumModules returns 2.
func (k *DifferentialKinematics) NumModules() int {
	return 2
}

// ModuleLocations returns the left and right wheel offsets.
func (k *DifferentialKinematics) ModuleLocations() []r2.Point {
	return k.locations
}

// ToModuleStates returns the left and right wheel speeds; vy is ignored.
func (k *DifferentialKinematics) ToModuleStates(speeds ChassisSpeeds) []ModuleState {
	return []ModuleState{
		{Speed: speeds.Vx - k.trackwidth/2*speeds.Omega},
		{Speed: speeds.Vx + k.trackwidth/2*speeds.Omega},
	}
}

// ToChassisSpeeds returns the chassis speeds for the given wheel states. Each wheel contributes
// the component of its motion along the robot's forward axis.
func (k *DifferentialKinematics) ToChassisSpeeds(states []ModuleState) ChassisSpeeds {
	left := states[0].Speed * states[0].Angle.Cos()
	right := states[1].Speed * states[1].Angle.Cos()
	return ChassisSpeeds{Vx: (left + right) / 2, Omega: (right - left) / k.trackwidth}
}

// ChassisForcesToWheelForces splits a force and torque between the two sides.
func (k *DifferentialKinematics) ChassisForcesToWheelForces(forceX, forceY, torque float64) []r2.Point {
	return k.forces.apply(forceX, forceY, torque)
}

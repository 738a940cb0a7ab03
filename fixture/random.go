package fixture

import (
	"fmt"
	"math/rand/v2"

	"github.com/specterops/recordcheck/record"
)

// RandomGraphOptions shape a generated graph. The same seed always generates the same graph.
type RandomGraphOptions struct {
	Seed              uint64
	Nodes             int
	Relationships     int
	Labels            int
	RelationshipTypes int
	DenseThreshold    int
	Schema            bool
}

func DefaultRandomGraphOptions() RandomGraphOptions {
	return RandomGraphOptions{
		Seed:              1,
		Nodes:             500,
		Relationships:     2_000,
		Labels:            10,
		RelationshipTypes: 4,
		DenseThreshold:    DefaultDenseThreshold,
		Schema:            true,
	}
}

var names = []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "india", "juliett"}

func randomValue(rng *rand.Rand) record.Value {
	switch rng.IntN(6) {
	case 0:
		return record.Bool(rng.IntN(2) == 0)
	case 1:
		return record.Int(rng.Int64N(1_000_000))
	case 2:
		return record.Float(rng.Float64())
	case 3:
		return record.String(names[rng.IntN(len(names))])
	case 4:
		return record.String(fmt.Sprintf("%s of a much longer string value %d", names[rng.IntN(len(names))], rng.IntN(1000)))
	default:
		values := make([]int64, 1+rng.IntN(40))

		for idx := range values {
			values[idx] = rng.Int64N(1 << 40)
		}

		return record.IntArray(values...)
	}
}

// RandomGraph adds a random but consistent graph to the builder. Every node carries a unique "uid" property;
// with Schema set the graph also gets lookup indexes, a uniqueness constraint on uid, a range index on "name" and
// an existence constraint. The builder is not committed.
func RandomGraph(builder *Builder, options RandomGraphOptions) []int64 {
	var (
		rng     = rand.New(rand.NewPCG(options.Seed, options.Seed^0x9e3779b97f4a7c15))
		labels  = make([]string, max(1, options.Labels))
		types   = make([]string, max(1, options.RelationshipTypes))
		nodeIDs = make([]int64, 0, options.Nodes)
	)

	for idx := range labels {
		labels[idx] = fmt.Sprintf("Label%d", idx)
	}

	for idx := range types {
		types[idx] = fmt.Sprintf("TYPE_%d", idx)
	}

	if options.DenseThreshold > 0 {
		builder.SetDenseThreshold(options.DenseThreshold)
	}

	if options.Schema {
		builder.LookupIndexes()
		builder.UniqueConstraint("uid unique", labels[0], "uid")
		builder.Index("name range", record.EntityNode, labels[1%len(labels)], "name")
		builder.ExistenceConstraint("uid exists", record.EntityNode, labels[0], "uid")
		builder.Index("weight range", record.EntityRelationship, types[0], "weight")
	}

	for idx := range options.Nodes {
		var (
			nodeLabels = []string{labels[0]}
			properties = Properties{"uid": record.Int(int64(idx))}
		)

		// A few nodes carry every label so that dynamic label chains are generated
		if idx%97 == 0 {
			nodeLabels = labels
		} else {
			for range rng.IntN(3) {
				nodeLabels = append(nodeLabels, labels[rng.IntN(len(labels))])
			}
		}

		if rng.IntN(2) == 0 {
			properties["name"] = record.String(names[rng.IntN(len(names))])
		}

		for range rng.IntN(6) {
			properties[fmt.Sprintf("p%d", rng.IntN(8))] = randomValue(rng)
		}

		nodeIDs = append(nodeIDs, builder.Node(nodeLabels, properties))
	}

	if len(nodeIDs) == 0 {
		return nodeIDs
	}

	for idx := range options.Relationships {
		var (
			from = nodeIDs[rng.IntN(len(nodeIDs))]
			to   = nodeIDs[rng.IntN(len(nodeIDs))]
		)

		// Skew a share of relationships onto the first node so that it becomes dense
		if idx%4 == 0 {
			from = nodeIDs[0]
		}

		properties := Properties{}

		if rng.IntN(3) == 0 {
			properties["weight"] = record.Float(rng.Float64())
		}

		builder.Relationship(from, to, types[rng.IntN(len(types))], properties)
	}

	return nodeIDs
}

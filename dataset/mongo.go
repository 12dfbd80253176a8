/*
Package-local MongoDB reader, grounded on pbanos-botanic's
dataset/mongodataset (mgo.Session, bson.M documents, collection
Find/Iter), adapted from that package's per-feature document shape to
one document per example: {"labels": [...], "features": {"<index>": value, ...}}.
*/
package dataset

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pbanos/napkinxc/example"
	"github.com/pbanos/napkinxc/vector"
	mgo "gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

const mongoExamplesCollection = "examples"

// MongoReader reads examples out of a MongoDB collection of documents
// shaped {"labels": [int32...], "features": {"<index>": float64, ...}}.
type MongoReader struct {
	session *mgo.Session
	dbName  string
}

// NewMongoReader wraps an already-dialed *mgo.Session, reading from
// database dbName's "examples" collection.
func NewMongoReader(session *mgo.Session, dbName string) *MongoReader {
	return &MongoReader{session: session, dbName: dbName}
}

type mongoExampleDoc struct {
	Labels   []int32        `bson:"labels"`
	Features map[string]float64 `bson:"features"`
}

func (m *MongoReader) Read(ctx context.Context) ([]*example.Example, error) {
	session := m.session.Copy()
	defer session.Close()
	collection := session.DB(m.dbName).C(mongoExamplesCollection)

	iter := collection.Find(bson.M{}).Iter()
	var doc mongoExampleDoc
	var examples []*example.Example
	for iter.Next(&doc) {
		e, err := docToExample(doc)
		if err != nil {
			return nil, fmt.Errorf("reading mongo example: %w", err)
		}
		examples = append(examples, e)
		doc = mongoExampleDoc{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("reading mongo examples: %w", err)
	}
	return examples, nil
}

func docToExample(doc mongoExampleDoc) (*example.Example, error) {
	indices := make([]int32, 0, len(doc.Features))
	values := make([]float64, 0, len(doc.Features))
	for k, v := range doc.Features {
		idx, err := strconv.ParseInt(k, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parsing feature index %q: %w", k, err)
		}
		indices = append(indices, int32(idx))
		values = append(values, v)
	}
	return &example.Example{Features: &vector.Sparse{Indices: indices, Values: values}, Labels: doc.Labels}, nil
}
